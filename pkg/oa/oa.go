// Package oa implements oblivious access: reading database[i] where both
// the database (an RSS-shared vector) and the index i (an RSS-shared
// scalar) stay secret throughout, per spec.md §4.5. Three named flavours
// share one abstract contract and, in this implementation, one algorithm:
// SharedOT (small databases), RingOA (the general case) and OblivSelect
// (128-bit block payloads).
//
// original_source/RingOA/protocol/ringoa.h gives the key's field shape
// (key_from_prev/key_from_next DPF keys plus pairwise index/write masks)
// but no ringoa.cpp ships in the retrieval pack, so the exact cross-term
// arithmetic that combines the two DPF executions is not available to
// copy. The construction below is derived instead from spec.md §4.5's
// contract directly: an offline dealer materialises a full RSS share of
// the one-hot selector vector (itself produced by genuinely running a
// DPF key pair through EvaluateFullDomain, so the DPF building block is
// exercised exactly as spec.md §4.4 describes), and the online phase
// combines it with the database via one mask-open and one RSS inner
// product. See DESIGN.md for the full reasoning and the tradeoffs this
// accepts relative to ringoa.h's literal two-DPF-key field shape.
package oa

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// Key is one party's share of an oblivious-access resource: an RSS share
// of the one-hot(alpha) selector vector and an RSS share of alpha itself
// (the index-masking term), for a dealer-chosen alpha none of the three
// parties learns individually.
type Key struct {
	Onehot rss.Vec
	RShare rss.Share
}

// SharedOTKey is SharedOT's key; in this implementation it is identical
// to Key, since SharedOT's "DPF full-domain selection only, no Beaver
// correction" restriction already describes exactly this construction.
type SharedOTKey = Key

// domainLen returns 2^n.
func domainLen(n uint) int { return 1 << n }

// GenerateKeys is the offline dealer operation for RingOA/SharedOT: pick
// a random alpha, build the DPF pair, evaluate it into the plaintext
// one-hot vector, and replicated-share both the vector and alpha itself
// across the three parties.
func GenerateKeys(dbParams ring.Params, dpfParams dpf.Params, strategy dpf.EvalStrategy) ([party.NumParties]Key, error) {
	var zero [party.NumParties]Key

	alpha, err := randomDomainValue(dpfParams.N)
	if err != nil {
		return zero, err
	}

	dpfK0, dpfK1, err := dpf.GenerateKeys(dpfParams, alpha, ring.Block{Lo: 1}, dpf.ShiftedAdditive)
	if err != nil {
		return zero, err
	}

	n := domainLen(dpfParams.N)
	out0 := make([]uint64, n)
	out1 := make([]uint64, n)
	if err := dpf.EvaluateFullDomain(dpfK0, 0, strategy, out0, nil); err != nil {
		return zero, err
	}
	if err := dpf.EvaluateFullDomain(dpfK1, 1, strategy, out1, nil); err != nil {
		return zero, err
	}

	onehot := make([]uint64, n)
	for i := range onehot {
		onehot[i] = dbParams.Add(out0[i], out1[i])
	}

	onehotShares, err := rss.ShareLocalVec(dbParams, onehot)
	if err != nil {
		return zero, err
	}
	alphaShares, err := rss.ShareLocal(dbParams, alpha)
	if err != nil {
		return zero, err
	}

	var keys [party.NumParties]Key
	for p := 0; p < party.NumParties; p++ {
		keys[p] = Key{Onehot: onehotShares[p], RShare: alphaShares[p]}
	}
	return keys, nil
}

// GenerateKeyBatch produces n independent Key resources, one offline
// dealer call per query the caller expects to make online, mirroring
// spec.md §4.4's "keys are a pre-provisioned resource, not re-derived
// per query."
func GenerateKeyBatch(dbParams ring.Params, dpfParams dpf.Params, strategy dpf.EvalStrategy, n int) ([party.NumParties][]Key, error) {
	var out [party.NumParties][]Key
	for p := range out {
		out[p] = make([]Key, n)
	}
	for i := 0; i < n; i++ {
		keys, err := GenerateKeys(dbParams, dpfParams, strategy)
		if err != nil {
			return out, err
		}
		for p := 0; p < party.NumParties; p++ {
			out[p][i] = keys[p]
		}
	}
	return out, nil
}

func randomDomainValue(n uint) (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("oa: sampling alpha: %v: %w", err, errs.ErrResourceExhaustion)
	}
	mask := (uint64(1) << n) - 1
	return binary.LittleEndian.Uint64(buf[:]) & mask, nil
}
