package oa

import (
	"crypto/rand"
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

func randomBlock() (ring.Block, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ring.Block{}, fmt.Errorf("oa: sampling block randomness: %v: %w", err, errs.ErrResourceExhaustion)
	}
	return ring.BlockFromBytes(buf[:]), nil
}

// BlockShare is one party's replicated share of a 128-bit block, the
// block-payload analogue of rss.Share used where the database holds
// bitmasks rather than ring scalars (spec.md §4.5's OblivSelect: "binary
// replicated shares with 128-bit block elements").
type BlockShare struct {
	A, B ring.Block
}

// BlockVec is the componentwise extension of BlockShare.
type BlockVec struct {
	A, B []ring.Block
}

func newBlockVec(n int) BlockVec {
	return BlockVec{A: make([]ring.Block, n), B: make([]ring.Block, n)}
}

func (v BlockVec) Len() int { return len(v.A) }

func (v BlockVec) At(i int) BlockShare { return BlockShare{A: v.A[i], B: v.B[i]} }

func (v BlockVec) Set(i int, sh BlockShare) { v.A[i] = sh.A; v.B[i] = sh.B }

// BlockKey is OblivSelect's key: a replicated XOR-share of the
// one-hot(alpha) block vector plus an RSS share of alpha for index
// masking, the block-payload counterpart of Key.
type BlockKey struct {
	Onehot BlockVec
	RShare rss.Share
}

// GenerateBlockKeys is OblivSelect's offline dealer operation.
func GenerateBlockKeys(dbParams ring.Params, dpfParams dpf.Params, strategy dpf.EvalStrategy) ([party.NumParties]BlockKey, error) {
	var zero [party.NumParties]BlockKey

	alpha, err := randomDomainValue(dpfParams.N)
	if err != nil {
		return zero, err
	}
	// allOnes, not a random mask: the one-hot entry must AND-select the
	// whole database block at alpha (all bits set) and zero it out
	// everywhere else, not blend in arbitrary bits.
	allOnes := ring.Block{Lo: ^uint64(0), Hi: ^uint64(0)}

	dpfK0, dpfK1, err := dpf.GenerateKeys(dpfParams, alpha, allOnes, dpf.SingleBitMask)
	if err != nil {
		return zero, err
	}

	n := domainLen(dpfParams.N)
	out0 := make([]ring.Block, n)
	out1 := make([]ring.Block, n)
	if err := dpf.EvaluateFullDomain(dpfK0, 0, strategy, nil, out0); err != nil {
		return zero, err
	}
	if err := dpf.EvaluateFullDomain(dpfK1, 1, strategy, nil, out1); err != nil {
		return zero, err
	}

	onehot := make([]ring.Block, n)
	for i := range onehot {
		onehot[i] = out0[i].XOR(out1[i])
	}

	onehotShares, err := shareLocalBlockVec(onehot)
	if err != nil {
		return zero, err
	}
	alphaShares, err := rss.ShareLocal(dbParams, alpha)
	if err != nil {
		return zero, err
	}

	var keys [party.NumParties]BlockKey
	for p := 0; p < party.NumParties; p++ {
		keys[p] = BlockKey{Onehot: onehotShares[p], RShare: alphaShares[p]}
	}
	return keys, nil
}

// shareLocalBlockVec is the block-payload analogue of rss.ShareLocalVec:
// a dealer split using XOR in place of modular addition.
func shareLocalBlockVec(xs []ring.Block) ([party.NumParties]BlockVec, error) {
	var out [party.NumParties]BlockVec
	for p := range out {
		out[p] = newBlockVec(len(xs))
	}
	for idx, x := range xs {
		r0, err := randomBlock()
		if err != nil {
			return out, err
		}
		r1, err := randomBlock()
		if err != nil {
			return out, err
		}
		x2 := x.XOR(r0).XOR(r1)
		out[0].Set(idx, BlockShare{A: r0, B: r1})
		out[1].Set(idx, BlockShare{A: r1, B: x2})
		out[2].Set(idx, BlockShare{A: x2, B: r0})
	}
	return out, nil
}

// OpenBlock reconstructs a block share, the block-payload analogue of
// rss.RSS.Open.
func OpenBlock(r *rss.RSS, chls *netio.Channels, sh BlockShare) (ring.Block, error) {
	if err := chls.Next.SendBlock(sh.A); err != nil {
		return ring.Block{}, err
	}
	received, err := chls.Prev.RecvBlock()
	if err != nil {
		return ring.Block{}, err
	}
	return sh.A.XOR(sh.B).XOR(received), nil
}

// EvaluateOblivSelect returns a block replicated share of database[index]
// for a block-valued database, combining the masked-index open (reusing
// the scalar RSS machinery, since the index itself is always a ring
// element even when the payload is a block) with an XOR inner product
// against the key's one-hot block selector.
func (e *Evaluator) EvaluateOblivSelect(chls *netio.Channels, key BlockKey, database BlockVec, index rss.Share) (BlockShare, error) {
	n := database.Len()
	if key.Onehot.Len() != n {
		return BlockShare{}, fmt.Errorf("oa: block database length %d does not match key domain %d: %w", n, key.Onehot.Len(), errs.ErrConfiguration)
	}

	maskedShare := e.rss.EvaluateAdd(index, key.RShare)
	masked, err := e.rss.Open(chls, maskedShare)
	if err != nil {
		return BlockShare{}, err
	}

	mod := uint64(n) - 1
	var zi ring.Block
	for x := uint64(0); x < uint64(n); x++ {
		src := (masked - x) & mod
		dbShare := database.At(int(src))
		selShare := key.Onehot.At(int(x))
		// Cross terms mirror rss.EvaluateMult's XOR-ring analogue:
		// z_i = sel_i&db_i XOR sel_i&db_{i+1} XOR sel_{i+1}&db_i.
		zi = zi.XOR(andBlock(selShare.A, dbShare.A)).XOR(andBlock(selShare.A, dbShare.B)).XOR(andBlock(selShare.B, dbShare.A))
	}
	zi = zi.XOR(e.rss.RandBlock())

	if err := chls.Next.SendBlock(zi); err != nil {
		return BlockShare{}, err
	}
	zPrev, err := chls.Prev.RecvBlock()
	if err != nil {
		return BlockShare{}, err
	}
	return BlockShare{A: zi, B: zPrev}, nil
}

func andBlock(a, b ring.Block) ring.Block {
	return ring.Block{Lo: a.Lo & b.Lo, Hi: a.Hi & b.Hi}
}
