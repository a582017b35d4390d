// Package wm implements the wavelet-matrix rank protocol of spec.md
// §4.7 (SecureWM/OWM/SotWM in the original naming): EvaluateRankCF
// answers "how many positions up to position in the text map to
// character c under the FM-index C-array + rank convention" by
// iterating the alphabet's bit-width, at each level issuing one
// oblivious access against the level's rank-0 prefix table and
// selecting between the rank-0/rank-1 branch via RSS select.
//
// Grounded on original_source/RingOA/wm/secure_wm.h (key/parameter
// shape) and owm.cpp (the only compilable EvaluateRankCF body in the
// retrieval pack; secure_wm.cpp does not exist, so this package plays
// the role both SecureWM and OWM play in the original — a single rank
// routine parameterised by the oa.Evaluator it is handed, exactly as
// owm.cpp and (by its header) secure_wm.h share the same body shape).
package wm

import (
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/oa"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// Params mirrors SecureWMParameters: the database (text+1) bit-width
// and the alphabet bit-width sigma (default 3, for DNA's 2-bit-plus-
// sentinel alphabet in the original benchmark harness).
type Params struct {
	DatabaseBitsize uint
	Sigma           uint
}

// NewParams validates and builds wavelet-matrix parameters.
func NewParams(databaseBitsize, sigma uint) (Params, error) {
	if sigma == 0 {
		return Params{}, fmt.Errorf("wm: sigma must be positive: %w", errs.ErrConfiguration)
	}
	return Params{DatabaseBitsize: databaseBitsize, Sigma: sigma}, nil
}

// DatabaseSize returns 2^DatabaseBitsize, the row length of every
// rank-0 table (text length + 1, per spec.md §4.1's "wavelet-matrix
// tables" definition).
func (p Params) DatabaseSize() int { return 1 << p.DatabaseBitsize }

func (p Params) String() string {
	return fmt.Sprintf("wm.Params{DatabaseBitsize: %d, DatabaseSize: %d, Sigma: %d}", p.DatabaseBitsize, p.DatabaseSize(), p.Sigma)
}

// Key is one party's share of a SecureWM resource: one oblivious-
// access key per bit-level of the alphabet, mirroring SecureWMKey's
// num_oa_keys/oa_keys fields.
type Key struct {
	OAKeys []oa.Key
}

// GenerateKeys is the offline dealer operation: one oa.GenerateKeys
// call per alphabet bit-level, mirroring SecureWMKeyGenerator's loop
// in owm.cpp's GenerateKeys.
func GenerateKeys(params Params, dpfParams dpf.Params, strategy dpf.EvalStrategy) ([party.NumParties]Key, error) {
	var zero [party.NumParties]Key

	var keys [party.NumParties]Key
	for p := range keys {
		keys[p].OAKeys = make([]oa.Key, params.Sigma)
	}

	dbParams, err := ring.NewParams(params.DatabaseBitsize)
	if err != nil {
		return zero, err
	}

	for b := uint(0); b < params.Sigma; b++ {
		oaKeys, err := oa.GenerateKeys(dbParams, dpfParams, strategy)
		if err != nil {
			return zero, err
		}
		for p := 0; p < party.NumParties; p++ {
			keys[p].OAKeys[b] = oaKeys[p]
		}
	}
	return keys, nil
}

// ShareTables replicated-shares a plaintext sigma x databaseSize
// rank-0 table matrix (row-major, row b holding the running zero-bit
// count up to each position at bit-level b, with the last column the
// row's total zero count), mirroring
// SecureWMKeyGenerator::GenerateDatabaseU64Share.
func ShareTables(params ring.Params, tablesFlat []uint64, sigma, databaseSize int) ([party.NumParties]rss.Mat, error) {
	return rss.ShareLocalMat(params, tablesFlat, sigma, databaseSize)
}

// Evaluator wraps the oblivious-access evaluator and RSS instance used
// to run EvaluateRankCF.
type Evaluator struct {
	oaEval *oa.Evaluator
	rss    *rss.RSS
	params Params
}

// NewEvaluator builds a wavelet-matrix evaluator atop an existing RSS
// instance.
func NewEvaluator(params Params, r *rss.RSS) *Evaluator {
	return &Evaluator{oaEval: oa.NewEvaluator(r), rss: r, params: params}
}

// EvaluateRankCF runs the sigma-iteration rank computation of spec.md
// §4.7: at each bit-level b, an oblivious access into wmTables row b
// yields rank0, rank1 is derived locally, and the b-th bit of the
// shared character selects between them.
func (e *Evaluator) EvaluateRankCF(chls *netio.Channels, key Key, wmTables rss.Mat, charSh rss.Vec, positionSh rss.Share) (rss.Share, error) {
	if len(key.OAKeys) != int(e.params.Sigma) {
		return rss.Share{}, fmt.Errorf("wm: key carries %d OA keys, want sigma=%d: %w", len(key.OAKeys), e.params.Sigma, errs.ErrConfiguration)
	}
	if wmTables.Rows != int(e.params.Sigma) {
		return rss.Share{}, fmt.Errorf("wm: table has %d rows, want sigma=%d: %w", wmTables.Rows, e.params.Sigma, errs.ErrConfiguration)
	}
	if charSh.Len() != int(e.params.Sigma) {
		return rss.Share{}, fmt.Errorf("wm: character share has %d bits, want sigma=%d: %w", charSh.Len(), e.params.Sigma, errs.ErrConfiguration)
	}

	position := positionSh
	for b := uint(0); b < e.params.Sigma; b++ {
		row := wmTables.Row(int(b))

		rank0, err := e.oaEval.Evaluate(chls, key.OAKeys[b], row, position)
		if err != nil {
			return rss.Share{}, err
		}

		totalZeros := row.At(row.Len() - 1)
		pSubRank0 := e.rss.EvaluateSub(position, rank0)
		rank1 := e.rss.EvaluateAdd(pSubRank0, totalZeros)

		position, err = e.rss.EvaluateSelect(chls, rank0, rank1, charSh.At(int(b)))
		if err != nil {
			return rss.Share{}, err
		}
	}
	return position, nil
}

// EvaluateRankCFParallel runs two independent position lookups against
// the same wmTables in one pass, mirroring
// SecureWMEvaluator::EvaluateRankCF_Parallel — the f- and g-endpoints
// of an FM-index interval share one bit-row traversal.
func (e *Evaluator) EvaluateRankCFParallel(chls *netio.Channels, key1, key2 Key, wmTables rss.Mat, charSh rss.Vec, positionSh rss.Vec) (rss.Vec, error) {
	if positionSh.Len() != 2 {
		return rss.Vec{}, fmt.Errorf("wm: parallel rank expects exactly 2 positions, got %d: %w", positionSh.Len(), errs.ErrConfiguration)
	}
	if wmTables.Rows != int(e.params.Sigma) {
		return rss.Vec{}, fmt.Errorf("wm: table has %d rows, want sigma=%d: %w", wmTables.Rows, e.params.Sigma, errs.ErrConfiguration)
	}

	position := positionSh
	for b := uint(0); b < e.params.Sigma; b++ {
		row := wmTables.Row(int(b))

		rank0a, err := e.oaEval.Evaluate(chls, key1.OAKeys[b], row, position.At(0))
		if err != nil {
			return rss.Vec{}, err
		}
		rank0b, err := e.oaEval.Evaluate(chls, key2.OAKeys[b], row, position.At(1))
		if err != nil {
			return rss.Vec{}, err
		}
		rank0 := rss.Vec{A: []uint64{rank0a.A, rank0b.A}, B: []uint64{rank0a.B, rank0b.B}}

		totalZeros := row.At(row.Len() - 1)
		totalZerosVec := rss.Vec{A: []uint64{totalZeros.A, totalZeros.A}, B: []uint64{totalZeros.B, totalZeros.B}}

		pSubRank0 := e.rss.EvaluateSubVec(position, rank0)
		rank1 := e.rss.EvaluateAddVec(pSubRank0, totalZerosVec)

		position, err = e.rss.EvaluateSelectVec(chls, rank0, rank1, charSh.At(int(b)))
		if err != nil {
			return rss.Vec{}, err
		}
	}
	return position, nil
}
