// Package errs defines the fatal error taxonomy shared by every protocol
// layer. None of these are recoverable within an evaluation: a caller
// that receives one aborts its session, consistent with the propagation
// policy of a semi-honest three-party protocol where no party retries.
package errs

import "errors"

var (
	// ErrConfiguration signals a parameter mismatch detected at
	// construction or at generator invocation (e.g. query longer than
	// the indexed text, or a table whose length disagrees with the
	// database size).
	ErrConfiguration = errors.New("ringoa: configuration error")

	// ErrSerialization signals a buffer size mismatch in Serialize or
	// Deserialize, or an attempt to load an empty buffer.
	ErrSerialization = errors.New("ringoa: serialization error")

	// ErrResourceExhaustion signals that a consumable correlated-randomness
	// resource (Beaver triples, PRF buffer) ran out mid-protocol.
	ErrResourceExhaustion = errors.New("ringoa: resource exhaustion")

	// ErrTransport signals a short read, a closed connection, or an
	// id mismatch during the ring handshake.
	ErrTransport = errors.New("ringoa: transport failure")

	// ErrProtocolAssertion signals violation of an internal invariant,
	// such as a key whose declared shape disagrees with its contents.
	ErrProtocolAssertion = errors.New("ringoa: protocol assertion failed")
)
