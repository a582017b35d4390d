package fmi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maczac150/RingOA-dev-sub002/internal/testutil"
	"github.com/maczac150/RingOA-dev-sub002/pkg/cmp"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/fmi"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/ass"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// runLPMParallel is runLPM's EvaluateLPMParallel counterpart: same
// plaintext database/query setup, but narrowing f and g together via
// the one-pass parallel backward search instead of two sequential
// EvaluateRankCF calls per query character.
func runLPMParallel(t *testing.T, query []uint64) []int {
	t.Helper()
	const sigma = uint(2)
	chars := []uint64{0, 3, 1, 2, 0, 1, 3}
	tablesFlat, cols := buildRankTables(chars, sigma)
	databaseBitsize := uint(3)
	require.Equal(t, 1<<databaseBitsize, cols)

	qs := uint(len(query))
	fmiParams, err := fmi.NewParams(databaseBitsize, qs, sigma)
	require.NoError(t, err)

	instances, chls, ringParams := setupParties(t, databaseBitsize)
	defer testutil.CloseRing(chls)

	dpfParams, err := dpf.NewParams(databaseBitsize, 2)
	require.NoError(t, err)

	keys, err := fmi.GenerateKeys(fmiParams, dpfParams, dpf.Iterative)
	require.NoError(t, err)

	tableShares, err := fmi.ShareTables(ringParams, tablesFlat, int(sigma), cols)
	require.NoError(t, err)

	queryBitsFlat := make([]uint64, int(qs)*int(sigma))
	for i, c := range query {
		for b := uint(0); b < sigma; b++ {
			queryBitsFlat[i*int(sigma)+int(b)] = bitAt(c, b, sigma)
		}
	}
	queryShares, err := fmi.ShareQuery(ringParams, queryBitsFlat, int(qs), int(sigma))
	require.NoError(t, err)

	assStore := ass.NewStore(nil)
	ass1 := ass.New(ass.RoleFirst, ringParams, assStore)
	ass2 := ass.New(ass.RoleSecond, ringParams, assStore)

	var result [3]rss.Vec
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[0])
			result[0], err = eval.EvaluateLPMParallel(c, keys[0], nil, tableShares[0], queryShares[0], cols)
			return
		},
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[1])
			p := &cmp.Participant{ASS: ass1, Chl: c.Next, Peer: party.P2}
			result[1], err = eval.EvaluateLPMParallel(c, keys[1], p, tableShares[1], queryShares[1], cols)
			return
		},
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[2])
			p := &cmp.Participant{ASS: ass2, Chl: c.Prev, Peer: party.P1}
			result[2], err = eval.EvaluateLPMParallel(c, keys[2], p, tableShares[2], queryShares[2], cols)
			return
		},
	}))

	var opened [3][]uint64
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) { opened[0], err = instances[0].OpenVec(c, result[0]); return },
		func(c *netio.Channels) (err error) { opened[1], err = instances[1].OpenVec(c, result[1]); return },
		func(c *netio.Channels) (err error) { opened[2], err = instances[2].OpenVec(c, result[2]); return },
	}))

	wantIndicators := lpmIndicators(tablesFlat, cols, sigma, cols, query)
	got := make([]int, len(opened[0]))
	for p, v := range opened {
		row := make([]int, len(v))
		for i, x := range v {
			row[i] = int(x)
		}
		require.Equal(t, wantIndicators, row, "party %d", p)
		if p == 0 {
			got = row
		}
	}
	return got
}

// TestEvaluateLPMParallelMatchesSequential pins spec.md §8's named
// equivalence property: swapping EvaluateLPMParallel's one-pass f/g
// narrowing for EvaluateLPM's pair of sequential EvaluateRankCF calls
// must yield identical opened indicator vectors for the same plaintext
// query. runLPM already asserts its opened output against the
// plaintext reference under wantLPMLength; runLPMParallel asserts the
// same reference for its own run, so the two transitively agree.
func TestEvaluateLPMParallelMatchesSequential(t *testing.T) {
	testCases := []struct {
		name          string
		query         []uint64
		wantLPMLength int
	}{
		{name: "full match", query: []uint64{0, 3, 1}, wantLPMLength: 3},
		{name: "partial match", query: []uint64{0, 3, 2}, wantLPMLength: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runLPM(t, tc.query, tc.wantLPMLength)
			runLPMParallel(t, tc.query)
		})
	}
}
