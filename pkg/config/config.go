// Package config implements RingOA's long-term session configuration
// and storage, mirroring protocols/lss/config/config.go's "long-term
// storage for a party" struct and marshal.go's CBOR-based persistence,
// adapted from an ECDSA threshold-signing config to the ring-topology
// protocol parameter set this module negotiates out of band before a
// query begins (spec.md §4.1's fixed-pairing TCP handshake needs a
// session nonce and a host/port range agreed in advance; §4.8/§4.9's
// evaluators need the database/alphabet/query-size parameters agreed
// identically by all three parties).
package config

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/fmi"
	"github.com/maczac150/RingOA-dev-sub002/pkg/keyio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/quantile"
)

// Session is the long-term, non-secret configuration shared identically
// by all three parties: this party's identity, the ring transport's
// dial parameters, and the protocol parameter set negotiated for the
// session. It carries no shares or keys — keys are persisted separately
// via pkg/keyio, which encodes them as CBOR.
type Session struct {
	// ID is this party's identity in the fixed three-party ring.
	ID party.ID

	// Host and BasePort are DialRing's connection parameters: every
	// party in a session must agree on the same host and base port
	// range for the fixed-pairing handshake to succeed.
	Host     string
	BasePort int

	// DialTimeout bounds DialRing's connection attempts.
	DialTimeout time.Duration

	// SessionNonce is exchanged during the handshake and folded into
	// the session id (see pkg/netio's blake3 transcript id) so a
	// misrouted dial is caught before any ring exchange begins.
	SessionNonce []byte

	// DatabaseBitsize and Sigma are the wavelet-matrix/quantile
	// parameters: the indexed text's bit-width and the alphabet's
	// bit-width.
	DatabaseBitsize uint
	Sigma           uint

	// QuerySize is the FM-index query length; zero if this session
	// only runs OQuantile and never SecureFMI.
	QuerySize uint
}

// QuantileParams derives this session's pkg/quantile parameter set.
func (s Session) QuantileParams() (quantile.Params, error) {
	return quantile.NewParams(s.DatabaseBitsize, s.Sigma)
}

// FMIParams derives this session's pkg/fmi parameter set; only valid
// when QuerySize is positive.
func (s Session) FMIParams() (fmi.Params, error) {
	return fmi.NewParams(s.DatabaseBitsize, s.QuerySize, s.Sigma)
}

// Validate checks the session is well-formed, mirroring
// protocols/lss/config/config.go's Validate.
func (s Session) Validate() error {
	if !s.ID.Valid() {
		return fmt.Errorf("config: invalid party id %d: %w", s.ID, errs.ErrConfiguration)
	}
	if s.Host == "" {
		return fmt.Errorf("config: missing host: %w", errs.ErrConfiguration)
	}
	if s.BasePort <= 0 {
		return fmt.Errorf("config: invalid base port %d: %w", s.BasePort, errs.ErrConfiguration)
	}
	if s.DialTimeout <= 0 {
		return fmt.Errorf("config: invalid dial timeout %s: %w", s.DialTimeout, errs.ErrConfiguration)
	}
	if len(s.SessionNonce) == 0 {
		return fmt.Errorf("config: missing session nonce: %w", errs.ErrConfiguration)
	}
	if s.DatabaseBitsize == 0 || s.DatabaseBitsize >= 64 {
		return fmt.Errorf("config: database bit-width %d out of range: %w", s.DatabaseBitsize, errs.ErrConfiguration)
	}
	if s.Sigma == 0 {
		return fmt.Errorf("config: sigma must be positive: %w", errs.ErrConfiguration)
	}
	if _, err := s.QuantileParams(); err != nil {
		return err
	}
	if s.QuerySize > 0 {
		if _, err := s.FMIParams(); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a deep copy of s, mirroring Config.Copy.
func (s Session) Copy() Session {
	out := s
	out.SessionNonce = append([]byte(nil), s.SessionNonce...)
	return out
}

// Marshal CBOR-encodes the session, the teacher's own wire format for
// non-hot-path metadata (see pkg/netio/handshake.go).
func (s Session) Marshal() ([]byte, error) {
	buf, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("config: marshaling session: %v: %w", err, errs.ErrSerialization)
	}
	return buf, nil
}

// Unmarshal decodes a session previously produced by Marshal.
func Unmarshal(data []byte) (Session, error) {
	var s Session
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("config: unmarshaling session: %v: %w", err, errs.ErrSerialization)
	}
	return s, nil
}

// Save persists the session to filePath, reusing pkg/keyio's generic
// CBOR file helpers (a session is, structurally, just another piece of
// key-adjacent material to load before the ring comes up).
func (s Session) Save(filePath string) error {
	return keyio.SaveKey(filePath, s)
}

// Load reads a session previously written by Save.
func Load(filePath string) (Session, error) {
	return keyio.LoadKey[Session](filePath)
}
