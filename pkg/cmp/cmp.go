// Package cmp implements the two 2-party comparison primitives of
// spec.md §4.6 (ZeroTest, IntegerComparison) and the standardised
// "(2,2) <-> RSS conversion" idiom that lifts either one into a full
// three-party RSS predicate. Both primitives operate between exactly
// two of the three parties (mirroring an *ass.ASS pair); P0 participates
// only in the conversion idiom's randomness generation and final
// re-share, never learning the predicate's plaintext.
package cmp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/ass"
)

// ZeroTestKey is one endpoint's half of a ZeroTest resource: a one-hot
// DPF key (alpha = this instance's secret mask m) plus this endpoint's
// additive share of m.
type ZeroTestKey struct {
	Role      ass.Role
	DPFKey    dpf.Key
	MaskShare uint64
}

// GenerateZeroTestKeys is the offline dealer operation: pick a random
// mask m, split it additively, and build a one-hot DPF keyed at
// alpha=m, beta=1, per spec.md §4.6's "key carries a one-hot DPF over
// the ring."
func GenerateZeroTestKeys(params ring.Params, dpfParams dpf.Params) (k0, k1 ZeroTestKey, err error) {
	m, err := randomRingValue(params)
	if err != nil {
		return ZeroTestKey{}, ZeroTestKey{}, err
	}
	m0, m1, err := ass.Share(params, m)
	if err != nil {
		return ZeroTestKey{}, ZeroTestKey{}, err
	}

	dpfK0, dpfK1, err := dpf.GenerateKeys(dpfParams, m, ring.Block{Lo: 1}, dpf.ShiftedAdditive)
	if err != nil {
		return ZeroTestKey{}, ZeroTestKey{}, err
	}

	return ZeroTestKey{Role: ass.RoleFirst, DPFKey: dpfK0, MaskShare: m0},
		ZeroTestKey{Role: ass.RoleSecond, DPFKey: dpfK1, MaskShare: m1}, nil
}

// EvaluateMaskedInput is the local step of ZeroTest: given the already
// publicly-opened masked value, read the one-hot DPF at that point. The
// two endpoints' outputs sum (2-party-additively) to 1 iff the
// original value was zero, since masked = value + m and the DPF fires
// only at x = m.
func EvaluateMaskedInput(key ZeroTestKey, masked uint64) (uint64, error) {
	out, _, err := dpf.Evaluate(key.DPFKey, int(key.Role), masked)
	return out, err
}

// EvaluateZeroTest runs the full 2-party ZeroTest: mask valueShare with
// this endpoint's share of m, open the sum (one round via a.Reconst),
// then evaluate locally.
func EvaluateZeroTest(a *ass.ASS, chl netio.Channel, key ZeroTestKey, valueShare uint64) (uint64, error) {
	maskedMine := a.EvaluateAdd(valueShare, key.MaskShare)
	masked, err := a.Reconst(chl, maskedMine)
	if err != nil {
		return 0, err
	}
	return EvaluateMaskedInput(key, masked)
}

// IntegerComparisonKey is one endpoint's half of an IntegerComparison
// resource. Rather than a dedicated distributed-comparison-function
// gate (the construction ringoa.h implies but whose arithmetic is not
// present anywhere in the retrieval pack — see DESIGN.md), the dealer
// precomputes the whole [0, 2^domainBits) comparison table for a fixed
// mask m and additively shares it: Table0[x]+Table1[x] = 1 iff
// (x-m) mod 2^domainBits has its top bit set, i.e. iff x-m is "negative"
// under domainBits-bit two's-complement wraparound. The result is correct
// only when the compared values differ by less than 2^(domainBits-1),
// i.e. when domainBits leaves at least one bit of headroom above the
// value range being compared.
type IntegerComparisonKey struct {
	Role      ass.Role
	MaskShare uint64
	Table     []uint64
}

// GenerateIntegerComparisonKeys is the offline dealer operation.
// domainBits bounds the precomputed table to 2^domainBits entries and
// must not exceed params.N. The predicate is the sign bit of the masked
// difference reduced mod 2^domainBits, so callers choose domainBits with
// |a-b| < 2^(domainBits-1); ring bits of params.N above domainBits play
// no part in the comparison.
func GenerateIntegerComparisonKeys(params ring.Params, domainBits uint) (k0, k1 IntegerComparisonKey, err error) {
	if domainBits == 0 || domainBits > params.N {
		return IntegerComparisonKey{}, IntegerComparisonKey{}, fmt.Errorf("cmp: domain bit-width %d invalid for ring width %d: %w", domainBits, params.N, errs.ErrConfiguration)
	}

	domain := uint64(1) << domainBits

	// m is restricted to [0, domain), not the full ring: the table below
	// is only ever indexed mod domain, so a larger m would be
	// indistinguishable from its low domainBits bits anyway, and keeping
	// it in-range lets masked-value arithmetic stay consistent between
	// the domain-bit modulus and the surrounding ring modulus (2^domainBits
	// divides 2^N, so reducing mod domain after ring arithmetic is exact).
	mFull, err := randomRingValue(params)
	if err != nil {
		return IntegerComparisonKey{}, IntegerComparisonKey{}, err
	}
	m := mFull & (domain - 1)
	m0, m1, err := ass.Share(params, m)
	if err != nil {
		return IntegerComparisonKey{}, IntegerComparisonKey{}, err
	}

	signBit := uint64(1) << (domainBits - 1)
	table0 := make([]uint64, domain)
	table1 := make([]uint64, domain)
	for x := uint64(0); x < domain; x++ {
		diff := params.Sub(x, m) & (domain - 1)
		var bit uint64
		if diff&signBit != 0 {
			bit = 1
		}
		t0, t1, err := ass.Share(params, bit)
		if err != nil {
			return IntegerComparisonKey{}, IntegerComparisonKey{}, err
		}
		table0[x], table1[x] = t0, t1
	}

	return IntegerComparisonKey{Role: ass.RoleFirst, MaskShare: m0, Table: table0},
		IntegerComparisonKey{Role: ass.RoleSecond, MaskShare: m1, Table: table1}, nil
}

// EvaluateSharedInput runs the full 2-party IntegerComparison: mask
// (a-b) with this endpoint's share of m, open the sum, and look up the
// predicate in the precomputed table at the now-public index.
func EvaluateSharedInput(a *ass.ASS, chl netio.Channel, key IntegerComparisonKey, aShare, bShare uint64) (uint64, error) {
	diffMine := a.EvaluateSub(aShare, bShare)
	maskedMine := a.EvaluateAdd(diffMine, key.MaskShare)
	masked, err := a.Reconst(chl, maskedMine)
	if err != nil {
		return 0, err
	}
	idx := masked & uint64(len(key.Table)-1)
	return key.Table[idx], nil
}

func randomRingValue(params ring.Params) (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("cmp: sampling randomness: %v: %w", err, errs.ErrResourceExhaustion)
	}
	return params.Reduce(binary.LittleEndian.Uint64(buf[:])), nil
}
