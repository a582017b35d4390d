package ring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// PRFStream is a keyed pseudorandom stream used by the RSS layer to draw
// correlated randomness shared with one neighbour. Two parties that have
// exchanged the same seed (during OnlineSetUp) produce identical output
// sequences by construction; this is what lets RSS's Rand-of-0 and the
// Araki multiplication mask cancel across the ring. It owns its own AES
// state and a monotonic counter; it is not safe for concurrent use.
type PRFStream struct {
	block cipher.Block
	ctr   uint64
}

// DeriveSeed turns a raw exchanged secret (e.g. bytes read off the wire
// during the ring handshake) into an AES-128 key via HKDF-SHA256, so the
// PRF is never keyed directly by attacker-influenced handshake bytes.
// label disambiguates independent streams derived from the same seed
// (e.g. "rss-prev" vs "rss-next").
func DeriveSeed(secret []byte, label string) ([16]byte, error) {
	var key [16]byte
	r := hkdf.New(sha256.New, secret, nil, []byte(label))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, errTransport("deriving PRF key for %q: %v", label, err)
	}
	return key, nil
}

// NewPRFStream constructs a stream keyed by a 128-bit AES key, typically
// produced by DeriveSeed.
func NewPRFStream(key [16]byte) (*PRFStream, error) {
	b, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errConfig("constructing PRF cipher: %v", err)
	}
	return &PRFStream{block: b}, nil
}

// Next draws the next pseudorandom 64-bit ring element from the stream,
// advancing the monotonic counter by one.
func (s *PRFStream) Next() uint64 {
	var ctrBytes [16]byte
	binary.LittleEndian.PutUint64(ctrBytes[:8], s.ctr)
	s.ctr++
	var out [16]byte
	s.block.Encrypt(out[:], ctrBytes[:])
	return binary.LittleEndian.Uint64(out[:8])
}

// NextBlock draws the next pseudorandom 128-bit block from the stream.
func (s *PRFStream) NextBlock() Block {
	var ctrBytes [16]byte
	binary.LittleEndian.PutUint64(ctrBytes[:8], s.ctr)
	binary.LittleEndian.PutUint64(ctrBytes[8:], ^s.ctr)
	s.ctr++
	var out [16]byte
	s.block.Encrypt(out[:], ctrBytes[:])
	return BlockFromBytes(out[:])
}

// Index returns the current counter value, useful for tests that assert
// on deterministic consumption order.
func (s *PRFStream) Index() uint64 {
	return s.ctr
}
