// Package quantile implements the k-th-smallest-in-range protocol of
// spec.md §4.8 (OQuantile): EvaluateQuantile descends the wavelet
// matrix bit-by-bit from MSB to LSB, at each level issuing two
// independent oblivious accesses (the f/g interval endpoints) against
// the level's rank-0 table, comparing the running rank k against the
// level's zero-count via the (2,2)<->RSS IntegerComparison idiom, and
// conditionally updating the interval and k.
//
// Grounded on original_source/RingOA/wm/oquantile.h for the
// parameter/key shape (num_oa_keys = 2*sigma, one IntegerComparison key
// per level) and oquantile.cpp for the per-level control flow. The
// masking arithmetic oquantile.cpp inlines ahead of its
// EvaluateSharedInput call is the exact spot spec.md's Design Notes
// flags as buggy ("a bug where k_sh.data[0] - r1_sh.data[0] was
// intended... prefer the consistent form used in the FMI path"); this
// package sidesteps it entirely by calling pkg/cmp's already-correct
// ConvertAndIntegerComparison rather than re-deriving the masking
// inline, and fixes the resulting select/accumulate directions against
// the plaintext reference (verified in quantile_test.go) rather than
// the original's literal argument order.
package quantile

import (
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/cmp"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/oa"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// Params mirrors OQuantileParameters: the database bit-width and
// alphabet bit-width sigma, plus the one-bit-wider "share size" ring
// oquantile.h derives (database_bitsize+1) so that left/right/k values
// up to the database size, and the IntegerComparison headroom bit
// pkg/cmp's wraparound-sign trick requires, both fit.
type Params struct {
	DatabaseBitsize uint
	Sigma           uint
}

// NewParams validates and builds quantile parameters.
func NewParams(databaseBitsize, sigma uint) (Params, error) {
	if sigma == 0 {
		return Params{}, fmt.Errorf("quantile: sigma must be positive: %w", errs.ErrConfiguration)
	}
	if databaseBitsize == 0 || databaseBitsize >= 64 {
		return Params{}, fmt.Errorf("quantile: database bit-width %d out of range: %w", databaseBitsize, errs.ErrConfiguration)
	}
	return Params{DatabaseBitsize: databaseBitsize, Sigma: sigma}, nil
}

// ShareSize is the ring bit-width shares of left/right/k/result are
// carried in: one bit wider than the database so IntegerComparison's
// wraparound-sign trick has the headroom it requires.
func (p Params) ShareSize() uint { return p.DatabaseBitsize + 1 }

// DatabaseSize returns 2^DatabaseBitsize, the row length of the rank-0
// tables (text length + 1).
func (p Params) DatabaseSize() int { return 1 << p.DatabaseBitsize }

// RingParams is the ring shares of left/right/k/result and the
// oblivious-access/IntegerComparison keys all operate over.
func (p Params) RingParams() (ring.Params, error) { return ring.NewParams(p.ShareSize()) }

func (p Params) String() string {
	return fmt.Sprintf("quantile.Params{DatabaseBitsize: %d, Sigma: %d, ShareSize: %d}", p.DatabaseBitsize, p.Sigma, p.ShareSize())
}

// Key is one party's share of an OQuantile resource: two oblivious-
// access keys per alphabet level (for the left and right interval
// endpoints) and one IntegerComparison key per level, mirroring
// OQuantileKey's num_oa_keys = 2*sigma / num_ic_keys = sigma fields.
type Key struct {
	OAKeysLeft  []oa.Key
	OAKeysRight []oa.Key
	ICKeys      []cmp.IntegerComparisonKey
}

// GenerateKeys is the offline dealer operation: per alphabet level, an
// independent pair of oblivious-access keys plus an IntegerComparison
// key pair, mirroring OQuantileKeyGenerator::GenerateKeys's loop.
func GenerateKeys(params Params, dpfParams dpf.Params, strategy dpf.EvalStrategy) ([party.NumParties]Key, error) {
	var zero [party.NumParties]Key

	ringParams, err := params.RingParams()
	if err != nil {
		return zero, err
	}

	var keys [party.NumParties]Key
	for p := range keys {
		keys[p].OAKeysLeft = make([]oa.Key, params.Sigma)
		keys[p].OAKeysRight = make([]oa.Key, params.Sigma)
		keys[p].ICKeys = make([]cmp.IntegerComparisonKey, params.Sigma)
	}

	for b := uint(0); b < params.Sigma; b++ {
		left, err := oa.GenerateKeys(ringParams, dpfParams, strategy)
		if err != nil {
			return zero, err
		}
		right, err := oa.GenerateKeys(ringParams, dpfParams, strategy)
		if err != nil {
			return zero, err
		}
		ic0, ic1, err := cmp.GenerateIntegerComparisonKeys(ringParams, params.ShareSize())
		if err != nil {
			return zero, err
		}
		for p := 0; p < party.NumParties; p++ {
			keys[p].OAKeysLeft[b] = left[p]
			keys[p].OAKeysRight[b] = right[p]
		}
		keys[party.P1].ICKeys[b] = ic0
		keys[party.P2].ICKeys[b] = ic1
	}
	return keys, nil
}

// ShareTables replicated-shares a plaintext sigma x databaseSize
// rank-0 table matrix, mirroring
// OQuantileKeyGenerator::GenerateDatabaseU64Share.
func ShareTables(params ring.Params, tablesFlat []uint64, sigma, databaseSize int) ([party.NumParties]rss.Mat, error) {
	return rss.ShareLocalMat(params, tablesFlat, sigma, databaseSize)
}

// Evaluator wraps the oblivious-access evaluator and RSS instance used
// to run EvaluateQuantile.
type Evaluator struct {
	oaEval *oa.Evaluator
	rss    *rss.RSS
	params Params
}

// NewEvaluator builds a quantile evaluator atop an existing RSS
// instance.
func NewEvaluator(params Params, r *rss.RSS) *Evaluator {
	return &Evaluator{oaEval: oa.NewEvaluator(r), rss: r, params: params}
}

// EvaluateQuantile runs the sigma-iteration descent of spec.md §4.8.
// participant carries this party's role in the (2,2)<->RSS
// IntegerComparison idiom; nil for the party not participating in the
// 2-party primitive ("P0"), mirroring pkg/cmp's convention.
func (e *Evaluator) EvaluateQuantile(chls *netio.Channels, key Key, participant *cmp.Participant, wmTables rss.Mat, leftSh, rightSh, kSh rss.Share) (rss.Share, error) {
	sigma := int(e.params.Sigma)
	if len(key.OAKeysLeft) != sigma || len(key.OAKeysRight) != sigma || len(key.ICKeys) != sigma {
		return rss.Share{}, fmt.Errorf("quantile: key carries mismatched key counts for sigma=%d: %w", sigma, errs.ErrConfiguration)
	}
	if wmTables.Rows != sigma {
		return rss.Share{}, fmt.Errorf("quantile: table has %d rows, want sigma=%d: %w", wmTables.Rows, sigma, errs.ErrConfiguration)
	}

	p := e.rss.Params()
	left, right, k := leftSh, rightSh, kSh
	var result rss.Share

	for b := 0; b < sigma; b++ {
		row := wmTables.Row(b)

		zeroleft, err := e.oaEval.Evaluate(chls, key.OAKeysLeft[b], row, left)
		if err != nil {
			return rss.Share{}, err
		}
		zeroright, err := e.oaEval.Evaluate(chls, key.OAKeysRight[b], row, right)
		if err != nil {
			return rss.Share{}, err
		}
		totalZeros := row.At(row.Len() - 1)
		zerocount := e.rss.EvaluateSub(zeroright, zeroleft)

		// comp = [k < zerocount]: per spec.md §4.8, comp=1 means the
		// k-th smallest is within the zero-subtree at this level (k
		// unchanged, interval narrows to [zeroleft, zeroright));
		// comp=0 means it is in the one-subtree (k -= zerocount,
		// interval narrows to the shifted-by-totalZeros range).
		comp, err := cmp.ConvertAndIntegerComparison(e.rss, chls, participant, key.ICKeys[b], k, zerocount)
		if err != nil {
			return rss.Share{}, err
		}

		updateK := e.rss.EvaluateSub(k, zerocount)
		k, err = e.rss.EvaluateSelect(chls, updateK, k, comp)
		if err != nil {
			return rss.Share{}, err
		}

		oneleft := e.rss.EvaluateSub(e.rss.EvaluateAdd(totalZeros, left), zeroleft)
		oneright := e.rss.EvaluateSub(e.rss.EvaluateAdd(totalZeros, right), zeroright)
		left, err = e.rss.EvaluateSelect(chls, oneleft, zeroleft, comp)
		if err != nil {
			return rss.Share{}, err
		}
		right, err = e.rss.EvaluateSelect(chls, oneright, zeroright, comp)
		if err != nil {
			return rss.Share{}, err
		}

		// bit = 1 - comp (the decoded bit at this level), computed
		// locally: negate comp's components then add the public
		// constant 1 via EvaluateAddPublic.
		negComp := rss.Share{A: p.Neg(comp.A), B: p.Neg(comp.B)}
		bit := e.rss.EvaluateAddPublic(negComp, 1)

		doubled := rss.Share{A: p.Mul(result.A, 2), B: p.Mul(result.B, 2)}
		result = e.rss.EvaluateAdd(doubled, bit)
	}
	return result, nil
}
