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
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/ass"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// bitAt extracts bit b of a sigma-bit character, MSB first, matching
// pkg/wm's and pkg/quantile's test helpers of the same name.
func bitAt(c uint64, b, sigma uint) uint64 {
	return (c >> (sigma - 1 - b)) & 1
}

// buildRankTables is the same bit-plane stable-partition plaintext
// reference used throughout this module's tests.
func buildRankTables(chars []uint64, sigma uint) (tablesFlat []uint64, cols int) {
	l := len(chars)
	cols = l + 1
	tablesFlat = make([]uint64, int(sigma)*cols)
	current := append([]uint64(nil), chars...)

	for b := uint(0); b < sigma; b++ {
		row := tablesFlat[int(b)*cols : int(b)*cols+cols]
		var zeros, ones []uint64
		for i, c := range current {
			if bitAt(c, b, sigma) == 0 {
				row[i+1] = row[i] + 1
				zeros = append(zeros, c)
			} else {
				row[i+1] = row[i]
				ones = append(ones, c)
			}
		}
		current = append(zeros, ones...)
	}
	return tablesFlat, cols
}

// rankCF is the plaintext reference rank computation, matching
// wm.Evaluator.EvaluateRankCF's loop exactly.
func rankCF(tablesFlat []uint64, cols int, sigma uint, c uint64, position int) int {
	rank := position
	for b := uint(0); b < sigma; b++ {
		row := tablesFlat[int(b)*cols : int(b)*cols+cols]
		rank0 := int(row[rank])
		if bitAt(c, b, sigma) == 0 {
			rank = rank0
		} else {
			totalZeros := int(row[cols-1])
			rank = totalZeros + (rank - rank0)
		}
	}
	return rank
}

// lpmIndicators is the plaintext reference backward-search loop,
// matching fmi.Evaluator.EvaluateLPM's loop exactly: a position's
// indicator is 1 once the [f,g) interval has emptied.
func lpmIndicators(tablesFlat []uint64, cols int, sigma uint, databaseSize int, query []uint64) []int {
	f, g := 0, databaseSize-1
	ind := make([]int, len(query))
	for i, c := range query {
		f = rankCF(tablesFlat, cols, sigma, c, f)
		g = rankCF(tablesFlat, cols, sigma, c, g)
		if g-f == 0 {
			ind[i] = 1
		}
	}
	return ind
}

func leadingZeros(ind []int) int {
	count := 0
	for _, v := range ind {
		if v != 0 {
			break
		}
		count++
	}
	return count
}

func setupParties(t *testing.T, ringBits uint) ([3]*rss.RSS, [party.NumParties]*netio.Channels, ring.Params) {
	t.Helper()
	params, err := ring.NewParams(ringBits)
	require.NoError(t, err)

	chls := testutil.NewInMemoryRing()
	var instances [3]*rss.RSS
	for i := 0; i < 3; i++ {
		instances[i] = rss.New(party.ID(i), params)
	}
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) error { return instances[0].OnlineSetUp(c) },
		func(c *netio.Channels) error { return instances[1].OnlineSetUp(c) },
		func(c *netio.Channels) error { return instances[2].OnlineSetUp(c) },
	}))
	return instances, chls, params
}

func runLPM(t *testing.T, query []uint64, wantLPMLength int) {
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
			result[0], err = eval.EvaluateLPM(c, keys[0], nil, tableShares[0], queryShares[0], cols)
			return
		},
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[1])
			p := &cmp.Participant{ASS: ass1, Chl: c.Next, Peer: party.P2}
			result[1], err = eval.EvaluateLPM(c, keys[1], p, tableShares[1], queryShares[1], cols)
			return
		},
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[2])
			p := &cmp.Participant{ASS: ass2, Chl: c.Prev, Peer: party.P1}
			result[2], err = eval.EvaluateLPM(c, keys[2], p, tableShares[2], queryShares[2], cols)
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
	require.Equal(t, wantLPMLength, leadingZeros(wantIndicators))

	for _, v := range opened {
		got := make([]int, len(v))
		for i, x := range v {
			got[i] = int(x)
		}
		require.Equal(t, wantIndicators, got)
		require.Equal(t, wantLPMLength, leadingZeros(got))
	}
}

func TestEvaluateLPMFullMatch(t *testing.T) {
	runLPM(t, []uint64{0, 3, 1}, 3)
}

func TestEvaluateLPMPartialMatch(t *testing.T) {
	runLPM(t, []uint64{0, 3, 2}, 2)
}
