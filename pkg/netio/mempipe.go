package netio

import "net"

// PipePair returns two Channels backed by an in-memory net.Pipe, for
// unit tests that don't want a real TCP round trip.
func PipePair() (a, b Channel) {
	ca, cb := net.Pipe()
	return NewChannel(ca), NewChannel(cb)
}
