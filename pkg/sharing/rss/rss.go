package rss

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
)

// RSS owns one party's correlated-randomness state for replicated
// sharing: two PRF streams, one keyed with the prev neighbour and one
// with next, used by Rand to produce a local additive share of zero.
// Per spec.md §9 ("Ownership of shared state"), this is a per-party
// singleton passed by reference to evaluators; it is never safe for
// concurrent use from multiple goroutines.
type RSS struct {
	id     party.ID
	params ring.Params

	prfPrev *ring.PRFStream // keyed with party.Prev()
	prfNext *ring.PRFStream // keyed with party.Next()
}

// New constructs an RSS instance for the given ring parameters. Call
// OnlineSetUp before any operation that depends on correlated
// randomness (Rand, EvaluateMult, EvaluateSelect, EvaluateInnerProduct).
func New(id party.ID, params ring.Params) *RSS {
	return &RSS{id: id, params: params}
}

// Params returns the ring parameters this instance was built with.
func (r *RSS) Params() ring.Params { return r.params }

// ID returns the party this instance was built for.
func (r *RSS) ID() party.ID { return r.id }

// OnlineSetUp exchanges fresh 16-byte nonces with both neighbours over
// chls and derives the two correlated PRF streams from them via HKDF,
// mirroring the original's "PRF state... keyed by fresh bytes exchanged
// between next and prev during OnlineSetUp" (spec.md §5).
func (r *RSS) OnlineSetUp(chls *netio.Channels) error {
	mySeed := make([]byte, 16)
	if _, err := rand.Read(mySeed); err != nil {
		return fmt.Errorf("rss: sampling seed: %v: %w", err, errs.ErrResourceExhaustion)
	}

	if err := chls.Next.SendBytes(mySeed); err != nil {
		return err
	}
	seedFromPrev, err := chls.Prev.RecvBytes()
	if err != nil {
		return err
	}

	// The stream shared with next is keyed by the seed I generated and
	// sent; the stream shared with prev is keyed by the seed prev sent
	// me. Both neighbours derive the identical AES key from the same
	// raw seed via the same HKDF label, so the two sides' streams agree
	// without further exchange.
	nextKey, err := ring.DeriveSeed(mySeed, "rss-stream")
	if err != nil {
		return err
	}
	prevKey, err := ring.DeriveSeed(seedFromPrev, "rss-stream")
	if err != nil {
		return err
	}
	if r.prfNext, err = ring.NewPRFStream(nextKey); err != nil {
		return err
	}
	if r.prfPrev, err = ring.NewPRFStream(prevKey); err != nil {
		return err
	}
	return nil
}

// ShareLocal splits plaintext x into the three parties' replicated
// shares. This is a dealer-side operation (no correlated PRF state is
// required) used by test harnesses and offline key generators, per
// spec.md §3's "Shares are created by ShareLocal."
func ShareLocal(params ring.Params, x uint64) ([party.NumParties]Share, error) {
	r0, err := randomRingValue(params)
	if err != nil {
		return [3]Share{}, err
	}
	r1, err := randomRingValue(params)
	if err != nil {
		return [3]Share{}, err
	}
	x0, x1 := r0, r1
	x2 := params.Sub(x, params.Add(x0, x1))

	return [3]Share{
		{A: x0, B: x1}, // party 0 holds (x0, x1)
		{A: x1, B: x2}, // party 1 holds (x1, x2)
		{A: x2, B: x0}, // party 2 holds (x2, x0)
	}, nil
}

// ShareLocalVec is the componentwise vector extension of ShareLocal.
func ShareLocalVec(params ring.Params, xs []uint64) ([party.NumParties]Vec, error) {
	var out [3]Vec
	for i := range out {
		out[i] = NewVec(len(xs))
	}
	for idx, x := range xs {
		shares, err := ShareLocal(params, x)
		if err != nil {
			return out, err
		}
		for p := 0; p < party.NumParties; p++ {
			out[p].Set(idx, shares[p])
		}
	}
	return out, nil
}

// ShareLocalMat is the matrix extension of ShareLocal; xFlat is the
// plaintext matrix in row-major order.
func ShareLocalMat(params ring.Params, xFlat []uint64, rows, cols int) ([party.NumParties]Mat, error) {
	if len(xFlat) != rows*cols {
		return [3]Mat{}, fmt.Errorf("rss: flat matrix length %d does not match %dx%d: %w", len(xFlat), rows, cols, errs.ErrConfiguration)
	}
	var out [3]Mat
	for i := range out {
		out[i] = NewMat(rows, cols)
	}
	for idx, x := range xFlat {
		shares, err := ShareLocal(params, x)
		if err != nil {
			return out, err
		}
		for p := 0; p < party.NumParties; p++ {
			out[p].A[idx] = shares[p].A
			out[p].B[idx] = shares[p].B
		}
	}
	return out, nil
}

func randomRingValue(params ring.Params) (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("rss: sampling randomness: %v: %w", err, errs.ErrResourceExhaustion)
	}
	return params.Reduce(binary.LittleEndian.Uint64(buf[:])), nil
}

// Open reconstructs the plaintext of a share: party i already holds
// (x_i, x_{i+1}); it is missing x_{i-1}. It sends its own x_i to next
// (which is exactly what next is missing, since next holds
// (x_{i+1}, x_{i+2})) and receives x_{i-1} from prev, who performed the
// same send to its own next (i.e. to us). This is the single-round
// "send next; recv prev" idiom of spec.md §5.
func (r *RSS) Open(chls *netio.Channels, sh Share) (uint64, error) {
	if err := chls.Next.SendUint64(sh.A); err != nil {
		return 0, err
	}
	received, err := chls.Prev.RecvUint64()
	if err != nil {
		return 0, err
	}
	return r.params.Reduce(sh.A + sh.B + received), nil
}

// OpenVec is the vector form of Open, batched into one round.
func (r *RSS) OpenVec(chls *netio.Channels, v Vec) ([]uint64, error) {
	if err := chls.Next.SendUint64Vec(v.A); err != nil {
		return nil, err
	}
	received, err := chls.Prev.RecvUint64Vec()
	if err != nil {
		return nil, err
	}
	if len(received) != len(v.A) {
		return nil, fmt.Errorf("rss: open vector length mismatch: got %d want %d: %w", len(received), len(v.A), errs.ErrProtocolAssertion)
	}
	out := make([]uint64, len(v.A))
	for i := range out {
		out[i] = r.params.Reduce(v.A[i] + v.B[i] + received[i])
	}
	return out, nil
}

// OpenMat is the matrix form of Open.
func (r *RSS) OpenMat(chls *netio.Channels, m Mat) ([]uint64, error) {
	return r.OpenVec(chls, Vec{A: m.A, B: m.B})
}

// EvaluateAdd is local componentwise addition.
func (r *RSS) EvaluateAdd(x, y Share) Share {
	return Share{A: maskAdd(r.params, x.A, y.A), B: maskAdd(r.params, x.B, y.B)}
}

// EvaluateAddVec is the vector form of EvaluateAdd.
func (r *RSS) EvaluateAddVec(x, y Vec) Vec {
	out := NewVec(x.Len())
	for i := 0; i < x.Len(); i++ {
		out.A[i] = maskAdd(r.params, x.A[i], y.A[i])
		out.B[i] = maskAdd(r.params, x.B[i], y.B[i])
	}
	return out
}

// EvaluateSub is local componentwise subtraction.
func (r *RSS) EvaluateSub(x, y Share) Share {
	return Share{A: maskSub(r.params, x.A, y.A), B: maskSub(r.params, x.B, y.B)}
}

// EvaluateSubVec is the vector form of EvaluateSub.
func (r *RSS) EvaluateSubVec(x, y Vec) Vec {
	out := NewVec(x.Len())
	for i := 0; i < x.Len(); i++ {
		out.A[i] = maskSub(r.params, x.A[i], y.A[i])
		out.B[i] = maskSub(r.params, x.B[i], y.B[i])
	}
	return out
}

// EvaluateAddPublic adds a public (cleartext, identical at every
// party) constant c to a share, purely locally: since ShareLocal
// assigns the x0 component to party 0's A and party 2's B, only those
// two parties' views change, which is exactly enough to shift the
// reconstructed sum by c with no communication.
func (r *RSS) EvaluateAddPublic(x Share, c uint64) Share {
	switch r.id {
	case party.P0:
		return Share{A: maskAdd(r.params, x.A, c), B: x.B}
	case party.P2:
		return Share{A: x.A, B: maskAdd(r.params, x.B, c)}
	default:
		return x
	}
}

// Rand returns a fresh local contribution to a replicated share of
// zero: Δ_i = PRF(prevKey) - PRF(nextKey). Summed across the three
// parties (each computing Δ_i from the same pairwise-shared keys as
// its neighbours), the three local contributions cancel to zero; this
// is the masking term consumed by EvaluateMult and the (2,2)<->RSS
// conversion idiom. Rand is local: it never blocks.
func (r *RSS) Rand() uint64 {
	return r.params.Sub(r.prfPrev.Next(), r.prfNext.Next())
}

// RandBlock is the 128-bit-block analogue of Rand, used by the
// block-payload (OblivSelect) variant of oblivious access: a fresh local
// contribution to a replicated XOR-share of the zero block, telescoping
// to zero when summed across the three parties.
func (r *RSS) RandBlock() ring.Block {
	return r.prfPrev.NextBlock().XOR(r.prfNext.NextBlock())
}

// PairwiseRand returns a fresh value from the correlated PRF stream this
// party shares directly with peer, with a sign convention such that
// calling this from both ends of the pair (each naming the other as
// peer) yields values summing to exactly zero with no communication:
// the "fresh RSS-Rand-of-0" masking step of the (2,2)<->RSS conversion
// idiom (spec.md §4.6), restricted to exactly the two parties running
// the idiom's 2-party primitive rather than telescoping across all
// three. peer must be one of this party's two ring neighbours.
func (r *RSS) PairwiseRand(peer party.ID) (uint64, error) {
	switch peer {
	case r.id.Next():
		return r.prfNext.Next(), nil
	case r.id.Prev():
		return r.params.Neg(r.prfPrev.Next()), nil
	default:
		return 0, fmt.Errorf("rss: %s is not a ring neighbour of %s: %w", peer, r.id, errs.ErrConfiguration)
	}
}

// EvaluateMult is the standard Araki-style RSS multiplication: each
// party computes z_i = x_i*y_i + x_i*y_{i+1} + x_{i+1}*y_i + r_i
// locally, sends z_i to next, receives z_{i-1} from prev, and stores
// (z_i, z_{i-1}) as the new replicated share of x*y.
func (r *RSS) EvaluateMult(chls *netio.Channels, x, y Share) (Share, error) {
	p := r.params
	zi := p.Add(p.Add(p.Mul(x.A, y.A), p.Mul(x.A, y.B)), p.Add(p.Mul(x.B, y.A), r.Rand()))

	if err := chls.Next.SendUint64(zi); err != nil {
		return Share{}, err
	}
	zPrev, err := chls.Prev.RecvUint64()
	if err != nil {
		return Share{}, err
	}
	return Share{A: zi, B: zPrev}, nil
}

// EvaluateMultVec is the vector form of EvaluateMult, batching the
// round of communication into one send/receive pair.
func (r *RSS) EvaluateMultVec(chls *netio.Channels, x, y Vec) (Vec, error) {
	p := r.params
	n := x.Len()
	zi := make([]uint64, n)
	for i := 0; i < n; i++ {
		zi[i] = p.Add(p.Add(p.Mul(x.A[i], y.A[i]), p.Mul(x.A[i], y.B[i])), p.Add(p.Mul(x.B[i], y.A[i]), r.Rand()))
	}

	if err := chls.Next.SendUint64Vec(zi); err != nil {
		return Vec{}, err
	}
	zPrev, err := chls.Prev.RecvUint64Vec()
	if err != nil {
		return Vec{}, err
	}
	if len(zPrev) != n {
		return Vec{}, fmt.Errorf("rss: mult vector length mismatch: got %d want %d: %w", len(zPrev), n, errs.ErrProtocolAssertion)
	}
	return Vec{A: zi, B: zPrev}, nil
}

// EvaluateSelect returns x if c=0 else y, computed as x + c*(y-x) via
// one RSS multiplication.
func (r *RSS) EvaluateSelect(chls *netio.Channels, x, y, c Share) (Share, error) {
	diff := r.EvaluateSub(y, x)
	prod, err := r.EvaluateMult(chls, c, diff)
	if err != nil {
		return Share{}, err
	}
	return r.EvaluateAdd(x, prod), nil
}

// EvaluateSelectVec selects componentwise between x and y using a
// single shared selector bit c.
func (r *RSS) EvaluateSelectVec(chls *netio.Channels, x, y Vec, c Share) (Vec, error) {
	n := x.Len()
	cVec := NewVec(n)
	for i := 0; i < n; i++ {
		cVec.A[i], cVec.B[i] = c.A, c.B
	}
	diff := r.EvaluateSubVec(y, x)
	prod, err := r.EvaluateMultVec(chls, cVec, diff)
	if err != nil {
		return Vec{}, err
	}
	return r.EvaluateAddVec(x, prod), nil
}

// EvaluateInnerProduct batches the RSS multiplication pattern across an
// entire vector pair into one round of communication, per spec.md
// §4.2's "one round of communication total."
func (r *RSS) EvaluateInnerProduct(chls *netio.Channels, x, y Vec) (Share, error) {
	p := r.params
	n := x.Len()
	var zi uint64
	for i := 0; i < n; i++ {
		zi = p.Add(zi, p.Add(p.Add(p.Mul(x.A[i], y.A[i]), p.Mul(x.A[i], y.B[i])), p.Mul(x.B[i], y.A[i])))
	}
	zi = p.Add(zi, r.Rand())

	if err := chls.Next.SendUint64(zi); err != nil {
		return Share{}, err
	}
	zPrev, err := chls.Prev.RecvUint64()
	if err != nil {
		return Share{}, err
	}
	return Share{A: zi, B: zPrev}, nil
}
