// Package dpf implements distributed point functions over Z_2^n, the
// function-secret-sharing building block consumed by the oblivious-access
// and comparison layers, per spec.md §4.4. A DPF key pair (Key0, Key1)
// jointly encodes f: Z_{2^n} -> G with f(alpha)=beta and 0 elsewhere;
// each party evaluates its key alone and the two outputs combine (XOR
// for SingleBitMask, sum for ShiftedAdditive) to recover f(x).
//
// Construction follows the classical Boyle-Gilboa-Ishai incremental
// point-function scheme: a binary tree of pkg/ring.Block seeds, doubled
// level by level via the fixed-key PRG, corrected at each level by a
// per-level correction word so the two parties' seeds agree everywhere
// except along the path to alpha.
package dpf

import (
	"crypto/rand"
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
)

// OutputType selects the group the DPF's output lives in, per spec.md
// §4.4's "Output types".
type OutputType uint8

const (
	// SingleBitMask: outputs are 128-bit blocks combined by XOR; used by
	// OblivSelect (pkg/oa's block keys), where the payload is a bitmask.
	SingleBitMask OutputType = iota
	// ShiftedAdditive: outputs are ring scalars combined by addition;
	// the two parties' outputs sum to beta at alpha and to zero at every
	// other point.
	ShiftedAdditive
)

// EvalStrategy selects the full-domain expansion algorithm, per spec.md
// §4.4's "Evaluation strategies". All strategies are functionally
// equivalent; they differ only in time/memory tradeoffs.
type EvalStrategy uint8

const (
	// Iterative walks a fresh tree path per queried input; O(n) per
	// point, used for single-point evaluation.
	Iterative EvalStrategy = iota
	// IterSingleBatch expands the entire frontier level by level,
	// keeping all 2^i seeds live at level i, and emits the full 2^n
	// domain in one pass.
	IterSingleBatch
	// HybridBatched runs IterSingleBatch's full-frontier expansion once
	// per chunk of 2^Params.Nu domain points and converts and writes only
	// that chunk's leaves; the frontier itself is not bounded.
	HybridBatched
	// IterDepthFirst recurses subtree by subtree to completion, using
	// O(n) seed-stack memory instead of O(2^n) frontier memory.
	IterDepthFirst
)

// Params describes one DPF instance's domain and evaluation knobs.
type Params struct {
	N  uint // input bit-width; domain is Z_2^N
	Nu uint // terminate bit-width: HybridBatched's flush chunk size, log2
}

// NewParams validates a DPF parameter set.
func NewParams(n, nu uint) (Params, error) {
	if n == 0 || n > 63 {
		return Params{}, fmt.Errorf("dpf: input bit-width must be in [1, 63], got %d: %w", n, errs.ErrConfiguration)
	}
	if nu > n {
		return Params{}, fmt.Errorf("dpf: terminate bit-width %d exceeds input bit-width %d: %w", nu, n, errs.ErrConfiguration)
	}
	return Params{N: n, Nu: nu}, nil
}

// levelCW is one level's correction word: a block plus two control bits,
// matching spec.md §6's "16 bytes correction block + 1 byte packed
// control bits" wire layout.
type levelCW struct {
	SCW               ring.Block
	TCWLeft, TCWRight byte
}

// Key is one party's half of a DPF key pair. Keys are immutable after
// generation; evaluation never mutates them (spec.md §4.4's state
// machine: "key loaded -> evaluated -> (reusable)").
type Key struct {
	Params   Params
	Output   OutputType
	InitSeed ring.Block
	InitT    byte
	CW       []levelCW
	// FinalCW is the output-group correction applied at the leaf. It is
	// stored uniformly as a 16-byte block for both output types (the
	// ShiftedAdditive case uses only its low 8 bytes as a ring scalar)
	// to avoid a variant field; see DESIGN.md.
	FinalCW ring.Block
}

// bitAt returns bit i of x (0 = MSB of the N-bit representation).
func bitAt(x uint64, i, n uint) byte {
	return byte((x >> (n - 1 - i)) & 1)
}

func randomBlock() (ring.Block, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ring.Block{}, fmt.Errorf("dpf: sampling seed randomness: %v: %w", err, errs.ErrResourceExhaustion)
	}
	return ring.BlockFromBytes(buf[:]), nil
}

// cmul returns o if t==1 else the zero block, used for "t * CW" blending.
func cmul(t byte, o ring.Block) ring.Block {
	if t == 1 {
		return o
	}
	return ring.Block{}
}

// convertScalar derives a ring-scalar output-group element from a leaf
// seed by re-keying through the PRG once more for domain separation from
// the tree-walk itself.
func convertScalar(prg *ring.PRG, seed ring.Block) uint64 {
	l, r, _, _ := prg.Expand(seed)
	return l.Lo ^ r.Hi
}

// convertBlock derives a block output-group element from a leaf seed.
func convertBlock(prg *ring.PRG, seed ring.Block) ring.Block {
	l, r, _, _ := prg.Expand(seed)
	return l.XOR(r)
}

// GenerateKeys is the offline dealer operation: given alpha in [0, 2^N)
// and beta (its low 8 bytes used as the ring scalar for ShiftedAdditive,
// the whole block used as the mask for SingleBitMask), produces the two
// parties' keys.
func GenerateKeys(params Params, alpha uint64, beta ring.Block, output OutputType) (k0, k1 Key, err error) {
	if alpha >= (uint64(1) << params.N) {
		return Key{}, Key{}, fmt.Errorf("dpf: alpha %d out of range for %d-bit domain: %w", alpha, params.N, errs.ErrConfiguration)
	}

	initSeed0, err := randomBlock()
	if err != nil {
		return Key{}, Key{}, err
	}
	initSeed1, err := randomBlock()
	if err != nil {
		return Key{}, Key{}, err
	}
	s0, s1 := initSeed0, initSeed1
	t0, t1 := byte(0), byte(1)

	prg := ring.NewPRG()
	cws := make([]levelCW, params.N)

	for i := uint(0); i < params.N; i++ {
		l0, r0, tl0, tr0 := prg.Expand(s0)
		l1, r1, tl1, tr1 := prg.Expand(s1)

		bit := bitAt(alpha, i, params.N)

		var cw levelCW
		var keep0, keep1 ring.Block
		var tKeep0, tKeep1 byte
		if bit == 0 {
			// keep = left, lose = right: the keep side's t-correction
			// gets the extra +1 that makes the invariant hold.
			cw.SCW = r0.XOR(r1)
			cw.TCWLeft = tl0 ^ tl1 ^ 1
			cw.TCWRight = tr0 ^ tr1
			keep0, tKeep0 = l0, tl0
			keep1, tKeep1 = l1, tl1
		} else {
			cw.SCW = l0.XOR(l1)
			cw.TCWLeft = tl0 ^ tl1
			cw.TCWRight = tr0 ^ tr1 ^ 1
			keep0, tKeep0 = r0, tr0
			keep1, tKeep1 = r1, tr1
		}
		cws[i] = cw

		tCWKeep := cw.TCWLeft
		if bit == 1 {
			tCWKeep = cw.TCWRight
		}

		s0 = keep0.XOR(cmul(t0, cw.SCW))
		t0 = tKeep0 ^ (t0 & tCWKeep)
		s1 = keep1.XOR(cmul(t1, cw.SCW))
		t1 = tKeep1 ^ (t1 & tCWKeep)
	}

	var finalCW ring.Block
	switch output {
	case SingleBitMask:
		finalCW = convertBlock(prg, s0).XOR(convertBlock(prg, s1)).XOR(beta)
	case ShiftedAdditive:
		c0 := convertScalar(prg, s0)
		c1 := convertScalar(prg, s1)
		diff := beta.Lo + c1 - c0
		if t1 == 1 {
			diff = -diff
		}
		finalCW = ring.Block{Lo: diff}
	default:
		return Key{}, Key{}, fmt.Errorf("dpf: unknown output type %d: %w", output, errs.ErrConfiguration)
	}

	k0 = Key{Params: params, Output: output, InitSeed: initSeed0, InitT: 0, CW: cws, FinalCW: finalCW}
	k1 = Key{Params: params, Output: output, InitSeed: initSeed1, InitT: 1, CW: cws, FinalCW: finalCW}
	return k0, k1, nil
}

// Evaluate computes one party's output share at a single input x, party
// is 0 or 1 indicating which half of the key pair this is (needed to
// apply the sign flip in ShiftedAdditive mode).
func Evaluate(key Key, party int, x uint64) (uint64, ring.Block, error) {
	if x >= (uint64(1) << key.Params.N) {
		return 0, ring.Block{}, fmt.Errorf("dpf: input %d out of range for %d-bit domain: %w", x, key.Params.N, errs.ErrConfiguration)
	}
	if len(key.CW) != int(key.Params.N) {
		return 0, ring.Block{}, fmt.Errorf("dpf: key has %d correction words, want %d: %w", len(key.CW), key.Params.N, errs.ErrProtocolAssertion)
	}

	prg := ring.NewPRG()
	s := key.InitSeed
	t := key.InitT

	for i := uint(0); i < key.Params.N; i++ {
		l, r, tl, tr := prg.Expand(s)
		cw := key.CW[i]
		l = l.XOR(cmul(t, cw.SCW))
		r = r.XOR(cmul(t, cw.SCW))
		tl ^= t & cw.TCWLeft
		tr ^= t & cw.TCWRight

		bit := bitAt(x, i, key.Params.N)
		if bit == 0 {
			s, t = l, tl
		} else {
			s, t = r, tr
		}
	}

	switch key.Output {
	case SingleBitMask:
		out := convertBlock(prg, s)
		if t == 1 {
			out = out.XOR(key.FinalCW)
		}
		return 0, out, nil
	case ShiftedAdditive:
		out := convertScalar(prg, s)
		if t == 1 {
			out += key.FinalCW.Lo
		}
		if party == 1 {
			out = -out
		}
		return out, ring.Block{}, nil
	default:
		return 0, ring.Block{}, fmt.Errorf("dpf: unknown output type %d: %w", key.Output, errs.ErrConfiguration)
	}
}
