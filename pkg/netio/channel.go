// Package netio implements the three-party ring transport: a Channel
// abstraction over blocking byte-oriented send/receive, the Channels
// bundle of a party's prev/next links, and the fixed-pairing TCP
// handshake of spec.md §4.1. The wire format follows spec.md §6:
// little-endian, length-prefixed, 8-byte scalars.
package netio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
)

// Channel is a blocking, FIFO point-to-point link to one neighbour.
// Every method may suspend; callers on the hot path (spec.md §5) must
// not assume otherwise. A Channel tracks total bytes sent since the
// last ResetStats, mirroring the original's Channels::GetStats.
type Channel interface {
	SendUint64(x uint64) error
	RecvUint64() (uint64, error)
	SendUint64Vec(xs []uint64) error
	RecvUint64Vec() ([]uint64, error)
	SendBlock(b ring.Block) error
	RecvBlock() (ring.Block, error)
	SendBytes(b []byte) error
	RecvBytes() ([]byte, error)
	BytesSent() uint64
	ResetStats()
	Close() error
}

// streamChannel implements Channel over any io.ReadWriteCloser, whether
// an in-memory net.Pipe (tests) or a real net.Conn (production).
type streamChannel struct {
	rw   io.ReadWriteCloser
	sent atomic.Uint64
}

// NewChannel wraps rw as a Channel.
func NewChannel(rw io.ReadWriteCloser) Channel {
	return &streamChannel{rw: rw}
}

func (c *streamChannel) BytesSent() uint64 { return c.sent.Load() }
func (c *streamChannel) ResetStats()        { c.sent.Store(0) }
func (c *streamChannel) Close() error       { return c.rw.Close() }

func (c *streamChannel) write(b []byte) error {
	n, err := c.rw.Write(b)
	c.sent.Add(uint64(n))
	if err != nil {
		return fmt.Errorf("netio: short write (%d/%d bytes): %v: %w", n, len(b), err, errs.ErrTransport)
	}
	return nil
}

func (c *streamChannel) readFull(b []byte) error {
	if _, err := io.ReadFull(c.rw, b); err != nil {
		return fmt.Errorf("netio: short read (wanted %d bytes): %v: %w", len(b), err, errs.ErrTransport)
	}
	return nil
}

func (c *streamChannel) SendUint64(x uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], x)
	return c.write(buf[:])
}

func (c *streamChannel) RecvUint64() (uint64, error) {
	var buf [8]byte
	if err := c.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (c *streamChannel) SendUint64Vec(xs []uint64) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(xs)))
	if err := c.write(lenBuf[:]); err != nil {
		return err
	}
	buf := make([]byte, 8*len(xs))
	for i, x := range xs {
		binary.LittleEndian.PutUint64(buf[8*i:8*i+8], x)
	}
	return c.write(buf)
}

func (c *streamChannel) RecvUint64Vec() ([]uint64, error) {
	var lenBuf [8]byte
	if err := c.readFull(lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, 8*n)
	if err := c.readFull(buf); err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(buf[8*i : 8*i+8])
	}
	return out, nil
}

func (c *streamChannel) SendBlock(b ring.Block) error {
	bs := b.Bytes()
	return c.write(bs[:])
}

func (c *streamChannel) RecvBlock() (ring.Block, error) {
	var buf [16]byte
	if err := c.readFull(buf[:]); err != nil {
		return ring.Block{}, err
	}
	return ring.BlockFromBytes(buf[:]), nil
}

func (c *streamChannel) SendBytes(b []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	if err := c.write(lenBuf[:]); err != nil {
		return err
	}
	return c.write(b)
}

func (c *streamChannel) RecvBytes() ([]byte, error) {
	var lenBuf [8]byte
	if err := c.readFull(lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if err := c.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Channels bundles one party's two ring links, mirroring the original's
// Channels struct (utils/network.h): prev receives from/sends to the
// lower neighbour, next the higher one.
type Channels struct {
	PartyID party.ID
	Prev    Channel
	Next    Channel
}

// BytesSent returns the total bytes sent on both links since the last
// ResetStats, matching the original's Channels::GetStats.
func (c *Channels) BytesSent() uint64 {
	return c.Prev.BytesSent() + c.Next.BytesSent()
}

// ResetStats zeroes both links' counters.
func (c *Channels) ResetStats() {
	c.Prev.ResetStats()
	c.Next.ResetStats()
}

// Close closes both links.
func (c *Channels) Close() error {
	errPrev := c.Prev.Close()
	errNext := c.Next.Close()
	if errPrev != nil {
		return errPrev
	}
	return errNext
}
