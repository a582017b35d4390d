// Package testutil spins up an in-process three-party ring over
// in-memory pipes, and runs each party's workload concurrently via
// errgroup -- mirroring the "three threads in one process" concurrency
// model of spec.md §5, without the real TCP handshake of pkg/netio.
package testutil

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
)

// NewInMemoryRing builds the three Channels bundles for parties
// {P0, P1, P2}, wired prev/next around the ring with in-memory pipes.
func NewInMemoryRing() [party.NumParties]*netio.Channels {
	p01a, p01b := netio.PipePair() // P0.Next <-> P1.Prev
	p12a, p12b := netio.PipePair() // P1.Next <-> P2.Prev
	p20a, p20b := netio.PipePair() // P2.Next <-> P0.Prev

	return [party.NumParties]*netio.Channels{
		{PartyID: party.P0, Next: p01a, Prev: p20b},
		{PartyID: party.P1, Next: p12a, Prev: p01b},
		{PartyID: party.P2, Next: p20a, Prev: p12b},
	}
}

// RunRing runs work[i] for each party i concurrently and returns the
// first error encountered, if any, per golang.org/x/sync/errgroup's
// fail-fast semantics. chls is typically the output of NewInMemoryRing.
func RunRing(chls [party.NumParties]*netio.Channels, work [party.NumParties]func(*netio.Channels) error) error {
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < party.NumParties; i++ {
		i := i
		g.Go(func() error {
			return work[i](chls[i])
		})
	}
	return g.Wait()
}

// CloseRing closes every channel in the ring, ignoring errors (best
// effort test teardown).
func CloseRing(chls [party.NumParties]*netio.Channels) {
	for _, c := range chls {
		_ = c.Close()
	}
}
