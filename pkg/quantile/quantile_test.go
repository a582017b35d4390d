package quantile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maczac150/RingOA-dev-sub002/internal/testutil"
	"github.com/maczac150/RingOA-dev-sub002/pkg/cmp"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/quantile"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/ass"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// bitAt extracts bit b of a sigma-bit character, MSB first, matching
// pkg/wm's test helper of the same name (duplicated here since test
// helpers are package-private).
func bitAt(c uint64, b, sigma uint) uint64 {
	return (c >> (sigma - 1 - b)) & 1
}

// buildRankTables is the same bit-plane stable-partition plaintext
// reference used by pkg/wm's tests.
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

// quantileRef is the plaintext reference k-th-smallest descent,
// structurally mirroring quantile.Evaluator.EvaluateQuantile's loop.
func quantileRef(tablesFlat []uint64, cols int, sigma uint, left, right, k int) int {
	result := 0
	for b := uint(0); b < sigma; b++ {
		row := tablesFlat[int(b)*cols : int(b)*cols+cols]
		zeroleft := int(row[left])
		zeroright := int(row[right])
		totalZeros := int(row[cols-1])
		zerocount := zeroright - zeroleft

		if k < zerocount {
			left, right = zeroleft, zeroright
			result = result * 2
		} else {
			k -= zerocount
			left = totalZeros + left - zeroleft
			right = totalZeros + right - zeroright
			result = result*2 + 1
		}
	}
	return result
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

func TestEvaluateQuantileMatchesPlaintextReference(t *testing.T) {
	const sigma = uint(2)
	chars := []uint64{0, 3, 1, 2, 0, 1, 3} // sorted: 0,0,1,1,2,3,3
	tablesFlat, cols := buildRankTables(chars, sigma)
	databaseBitsize := uint(3)
	require.Equal(t, 1<<databaseBitsize, cols)

	qParams, err := quantile.NewParams(databaseBitsize, sigma)
	require.NoError(t, err)
	ringParams, err := qParams.RingParams()
	require.NoError(t, err)

	instances, chls, _ := setupParties(t, qParams.ShareSize())
	defer testutil.CloseRing(chls)

	dpfParams, err := dpf.NewParams(databaseBitsize, 2)
	require.NoError(t, err)

	keys, err := quantile.GenerateKeys(qParams, dpfParams, dpf.Iterative)
	require.NoError(t, err)

	tableShares, err := quantile.ShareTables(ringParams, tablesFlat, int(sigma), cols)
	require.NoError(t, err)

	// Parties 1 and 2 run the 2-party IntegerComparison primitive
	// directly between themselves; party 0 is the non-participant,
	// matching pkg/cmp's ConvertAndIntegerComparison convention.
	assStore := ass.NewStore(nil)
	ass1 := ass.New(ass.RoleFirst, ringParams, assStore)
	ass2 := ass.New(ass.RoleSecond, ringParams, assStore)

	for _, tc := range []struct {
		name           string
		left, right, k int
	}{
		{name: "k=0", left: 0, right: cols - 1, k: 0},
		{name: "k=1", left: 0, right: cols - 1, k: 1},
		{name: "k=2", left: 0, right: cols - 1, k: 2},
		{name: "k=3", left: 0, right: cols - 1, k: 3},
		{name: "k=4", left: 0, right: cols - 1, k: 4},
		{name: "k=5", left: 0, right: cols - 1, k: 5},
		{name: "k=6", left: 0, right: cols - 1, k: 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			leftSh, err := rss.ShareLocal(ringParams, uint64(tc.left))
			require.NoError(t, err)
			rightSh, err := rss.ShareLocal(ringParams, uint64(tc.right))
			require.NoError(t, err)
			kSh, err := rss.ShareLocal(ringParams, uint64(tc.k))
			require.NoError(t, err)

			var result [3]rss.Share
			require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
				func(c *netio.Channels) (err error) {
					eval := quantile.NewEvaluator(qParams, instances[0])
					result[0], err = eval.EvaluateQuantile(c, keys[0], nil, tableShares[0], leftSh[0], rightSh[0], kSh[0])
					return
				},
				func(c *netio.Channels) (err error) {
					eval := quantile.NewEvaluator(qParams, instances[1])
					p := &cmp.Participant{ASS: ass1, Chl: c.Next, Peer: party.P2}
					result[1], err = eval.EvaluateQuantile(c, keys[1], p, tableShares[1], leftSh[1], rightSh[1], kSh[1])
					return
				},
				func(c *netio.Channels) (err error) {
					eval := quantile.NewEvaluator(qParams, instances[2])
					p := &cmp.Participant{ASS: ass2, Chl: c.Prev, Peer: party.P1}
					result[2], err = eval.EvaluateQuantile(c, keys[2], p, tableShares[2], leftSh[2], rightSh[2], kSh[2])
					return
				},
			}))

			var opened [3]uint64
			require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
				func(c *netio.Channels) (err error) { opened[0], err = instances[0].Open(c, result[0]); return },
				func(c *netio.Channels) (err error) { opened[1], err = instances[1].Open(c, result[1]); return },
				func(c *netio.Channels) (err error) { opened[2], err = instances[2].Open(c, result[2]); return },
			}))

			want := uint64(quantileRef(tablesFlat, cols, sigma, tc.left, tc.right, tc.k))
			for _, v := range opened {
				require.EqualValues(t, want, v)
			}
		})
	}
}
