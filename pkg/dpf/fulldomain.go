package dpf

import (
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
)

// frontierNode is one live seed/control-bit pair during batched
// full-domain expansion.
type frontierNode struct {
	seed ring.Block
	t    byte
}

// EvaluateFullDomain expands key over its entire 2^N domain according to
// strategy, writing scalar outputs (ShiftedAdditive) or block outputs
// (SingleBitMask) into out, which must have length 2^N. The expansion is
// deterministic given (key, party, strategy): spec.md §8's DPF
// round-trip property.
func EvaluateFullDomain(key Key, party int, strategy EvalStrategy, outScalar []uint64, outBlock []ring.Block) error {
	domain := uint64(1) << key.Params.N
	switch key.Output {
	case ShiftedAdditive:
		if uint64(len(outScalar)) != domain {
			return fmt.Errorf("dpf: outScalar length %d does not match domain 2^%d: %w", len(outScalar), key.Params.N, errs.ErrConfiguration)
		}
	case SingleBitMask:
		if uint64(len(outBlock)) != domain {
			return fmt.Errorf("dpf: outBlock length %d does not match domain 2^%d: %w", len(outBlock), key.Params.N, errs.ErrConfiguration)
		}
	}

	switch strategy {
	case Iterative:
		return evalIterative(key, party, outScalar, outBlock)
	case IterSingleBatch:
		return evalBatched(key, party, domain, outScalar, outBlock)
	case HybridBatched:
		return evalHybridBatched(key, party, outScalar, outBlock)
	case IterDepthFirst:
		return evalDepthFirst(key, party, outScalar, outBlock)
	default:
		return fmt.Errorf("dpf: unknown evaluation strategy %d: %w", strategy, errs.ErrConfiguration)
	}
}

// evalIterative re-walks the tree once per domain point. Simplest and
// slowest; used as the single-point path and as the reference strategy.
func evalIterative(key Key, party int, outScalar []uint64, outBlock []ring.Block) error {
	domain := uint64(1) << key.Params.N
	for x := uint64(0); x < domain; x++ {
		s, b, err := Evaluate(key, party, x)
		if err != nil {
			return err
		}
		writeOut(key, x, s, b, outScalar, outBlock)
	}
	return nil
}

// evalBatched expands the entire frontier level by level, doubling the
// live node count at each of the N levels, and converts the final
// frontier of 2^N leaves in one pass. Used directly by IterSingleBatch;
// HybridBatched reuses it per chunk.
func evalBatched(key Key, party int, domain uint64, outScalar []uint64, outBlock []ring.Block) error {
	return evalBatchedRange(key, party, 0, domain, outScalar, outBlock)
}

// evalBatchedRange runs the frontier-doubling expansion over the whole
// tree, then writes only the leaves whose index falls in the half-open
// range [lo, hi). HybridBatched calls this once per chunk to bound how
// many leaves are converted and written at once, at the cost of
// re-walking the tree root for every chunk.
func evalBatchedRange(key Key, party int, lo, hi uint64, outScalar []uint64, outBlock []ring.Block) error {
	if len(key.CW) != int(key.Params.N) {
		return fmt.Errorf("dpf: key has %d correction words, want %d: %w", len(key.CW), key.Params.N, errs.ErrProtocolAssertion)
	}
	prg := ring.NewPRG()
	frontier := []frontierNode{{seed: key.InitSeed, t: key.InitT}}

	for level := uint(0); level < key.Params.N; level++ {
		cw := key.CW[level]
		next := make([]frontierNode, 0, len(frontier)*2)
		for _, node := range frontier {
			l, r, tl, tr := prg.Expand(node.seed)
			l = l.XOR(cmul(node.t, cw.SCW))
			r = r.XOR(cmul(node.t, cw.SCW))
			tl ^= node.t & cw.TCWLeft
			tr ^= node.t & cw.TCWRight
			next = append(next, frontierNode{seed: l, t: tl}, frontierNode{seed: r, t: tr})
		}
		frontier = next
	}

	for i, node := range frontier {
		x := uint64(i)
		if x < lo || x >= hi {
			continue
		}
		writeLeaf(key, prg, party, x, node, outScalar, outBlock)
	}
	return nil
}

func writeLeaf(key Key, prg *ring.PRG, party int, x uint64, node frontierNode, outScalar []uint64, outBlock []ring.Block) {
	switch key.Output {
	case SingleBitMask:
		out := convertBlock(prg, node.seed)
		if node.t == 1 {
			out = out.XOR(key.FinalCW)
		}
		outBlock[x] = out
	case ShiftedAdditive:
		out := convertScalar(prg, node.seed)
		if node.t == 1 {
			out += key.FinalCW.Lo
		}
		if party == 1 {
			out = -out
		}
		outScalar[x] = out
	}
}

func writeOut(key Key, x uint64, s uint64, b ring.Block, outScalar []uint64, outBlock []ring.Block) {
	switch key.Output {
	case ShiftedAdditive:
		outScalar[x] = s
	case SingleBitMask:
		outBlock[x] = b
	}
}

// evalHybridBatched runs evalBatchedRange in chunks of 2^Nu domain
// points, re-walking the tree from the root once per chunk. Each pass
// still builds the full 2^N frontier; only leaf conversion and writing
// are limited to the chunk.
func evalHybridBatched(key Key, party int, outScalar []uint64, outBlock []ring.Block) error {
	domain := uint64(1) << key.Params.N
	chunk := uint64(1) << key.Params.Nu
	if chunk == 0 || chunk > domain {
		chunk = domain
	}
	for lo := uint64(0); lo < domain; lo += chunk {
		hi := lo + chunk
		if hi > domain {
			hi = domain
		}
		if err := evalBatchedRange(key, party, lo, hi, outScalar, outBlock); err != nil {
			return err
		}
	}
	return nil
}

// evalDepthFirst recurses subtree by subtree, keeping only an O(N)-sized
// seed stack live at any time instead of a full O(2^N) frontier.
func evalDepthFirst(key Key, party int, outScalar []uint64, outBlock []ring.Block) error {
	if len(key.CW) != int(key.Params.N) {
		return fmt.Errorf("dpf: key has %d correction words, want %d: %w", len(key.CW), key.Params.N, errs.ErrProtocolAssertion)
	}
	prg := ring.NewPRG()
	var walk func(level uint, prefix uint64, seed ring.Block, t byte)
	walk = func(level uint, prefix uint64, seed ring.Block, t byte) {
		if level == key.Params.N {
			writeLeaf(key, prg, party, prefix, frontierNode{seed: seed, t: t}, outScalar, outBlock)
			return
		}
		cw := key.CW[level]
		l, r, tl, tr := prg.Expand(seed)
		l = l.XOR(cmul(t, cw.SCW))
		r = r.XOR(cmul(t, cw.SCW))
		tl ^= t & cw.TCWLeft
		tr ^= t & cw.TCWRight
		walk(level+1, prefix<<1, l, tl)
		walk(level+1, prefix<<1|1, r, tr)
	}
	walk(0, 0, key.InitSeed, key.InitT)
	return nil
}
