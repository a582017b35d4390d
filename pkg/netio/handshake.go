package netio

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
)

// handshakeEnvelope is exchanged once, before either side trusts the
// link to be to the expected neighbour. It is CBOR-encoded (not the
// fixed binary layout of spec.md §6, which is reserved for keys and
// shares): this is transport bring-up metadata, not protocol state.
type handshakeEnvelope struct {
	PartyID uint8
	Nonce   []byte
}

// transcriptEnvelope carries the sender's locally-derived session
// transcript id, exchanged in the second handshake round so each party
// can confirm all three parties agree on the same session.
type transcriptEnvelope struct {
	PartyID    uint8
	Transcript []byte
}

// sessionID derives a short, non-secret transcript id from the three
// ring parties' nonces (indexed by party id, so every party computes
// the same digest regardless of which two links it received the other
// nonces over), so a misconfigured run (e.g. two parties dialing into
// unrelated sessions on the same host/port range) is caught before any
// ring exchange happens, rather than surfacing as a confusing
// downstream deserialization error.
func sessionID(nonces [3][]byte) []byte {
	h := blake3.New()
	for _, n := range nonces {
		_, _ = h.Write(n)
	}
	return h.Sum(nil)[:8]
}

func sendHandshake(c Channel, self party.ID, sessionNonce []byte) error {
	env := handshakeEnvelope{PartyID: uint8(self), Nonce: sessionNonce}
	data, err := cbor.Marshal(env)
	if err != nil {
		return fmt.Errorf("netio: encoding handshake: %v: %w", err, errs.ErrTransport)
	}
	return c.SendBytes(data)
}

func recvHandshake(c Channel, expectFrom party.ID) (*handshakeEnvelope, error) {
	data, err := c.RecvBytes()
	if err != nil {
		return nil, err
	}
	var env handshakeEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("netio: decoding handshake: %v: %w", err, errs.ErrTransport)
	}
	if party.ID(env.PartyID) != expectFrom {
		return nil, fmt.Errorf("netio: handshake id mismatch: expected %s, got party %d: %w",
			expectFrom, env.PartyID, errs.ErrTransport)
	}
	return &env, nil
}

func sendTranscript(c Channel, self party.ID, transcript []byte) error {
	env := transcriptEnvelope{PartyID: uint8(self), Transcript: transcript}
	data, err := cbor.Marshal(env)
	if err != nil {
		return fmt.Errorf("netio: encoding transcript: %v: %w", err, errs.ErrTransport)
	}
	return c.SendBytes(data)
}

// recvTranscript reads the peer's locally-derived transcript id and
// rejects the link if it disagrees with want, catching a misrouted
// handshake (the peer landed in a different session) before any ring
// exchange happens.
func recvTranscript(c Channel, expectFrom party.ID, want []byte) error {
	data, err := c.RecvBytes()
	if err != nil {
		return err
	}
	var env transcriptEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("netio: decoding transcript: %v: %w", err, errs.ErrTransport)
	}
	if party.ID(env.PartyID) != expectFrom {
		return fmt.Errorf("netio: transcript id mismatch: expected %s, got party %d: %w",
			expectFrom, env.PartyID, errs.ErrTransport)
	}
	if !bytes.Equal(env.Transcript, want) {
		return fmt.Errorf("netio: session transcript mismatch with %s: misrouted handshake: %w",
			expectFrom, errs.ErrTransport)
	}
	return nil
}

// basePortFor returns the fixed-pairing TCP port for the unordered pair
// {a, b}, per spec.md §4.1: each unordered pair of the three parties
// gets a distinct port derived from basePort, and the lower-id party
// always listens.
func basePortFor(basePort int, a, b party.ID) int {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	// There are exactly three unordered pairs in a 3-party ring:
	// {0,1}, {1,2}, {0,2}. Offset deterministically by pair.
	switch {
	case lo == party.P0 && hi == party.P1:
		return basePort + 0
	case lo == party.P1 && hi == party.P2:
		return basePort + 1
	default: // {0,2}
		return basePort + 2
	}
}

// DialRing brings up both ring links for party self: the lower-id
// endpoint of each unordered pair listens, the higher-id endpoint
// dials, matching spec.md §4.1's fixed pairing convention. It blocks
// until both links are connected and handshaked, or returns a
// TransportFailure.
func DialRing(self party.ID, host string, basePort int, sessionNonce []byte, dialTimeout time.Duration) (*Channels, error) {
	prevID := self.Prev()
	nextID := self.Next()

	prevCh, err := connectPair(self, prevID, host, basePortFor(basePort, self, prevID), dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("netio: bringing up prev link to %s: %w", prevID, err)
	}
	nextCh, err := connectPair(self, nextID, host, basePortFor(basePort, self, nextID), dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("netio: bringing up next link to %s: %w", nextID, err)
	}

	if err := sendHandshake(prevCh, self, sessionNonce); err != nil {
		return nil, err
	}
	if err := sendHandshake(nextCh, self, sessionNonce); err != nil {
		return nil, err
	}
	prevEnv, err := recvHandshake(prevCh, prevID)
	if err != nil {
		return nil, err
	}
	nextEnv, err := recvHandshake(nextCh, nextID)
	if err != nil {
		return nil, err
	}

	// self directly holds all three parties' nonces now (its own, plus
	// one from each of its two ring neighbours, who together are the
	// other two parties in a 3-party ring), so it can derive the full
	// session transcript locally.
	var nonces [3][]byte
	nonces[self] = sessionNonce
	nonces[prevID] = prevEnv.Nonce
	nonces[nextID] = nextEnv.Nonce
	transcript := sessionID(nonces)

	if err := sendTranscript(prevCh, self, transcript); err != nil {
		return nil, err
	}
	if err := sendTranscript(nextCh, self, transcript); err != nil {
		return nil, err
	}
	if err := recvTranscript(prevCh, prevID, transcript); err != nil {
		return nil, err
	}
	if err := recvTranscript(nextCh, nextID, transcript); err != nil {
		return nil, err
	}

	return &Channels{PartyID: self, Prev: prevCh, Next: nextCh}, nil
}

// connectPair establishes one link between self and other: self listens
// if it has the lower id in the pair, otherwise it dials.
func connectPair(self, other party.ID, host string, port int, dialTimeout time.Duration) (Channel, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	if self < other {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("netio: listening on %s: %v: %w", addr, err, errs.ErrTransport)
		}
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return nil, fmt.Errorf("netio: accepting on %s: %v: %w", addr, err, errs.ErrTransport)
		}
		return NewChannel(conn), nil
	}
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("netio: dialing %s: %v: %w", addr, err, errs.ErrTransport)
	}
	return NewChannel(conn), nil
}
