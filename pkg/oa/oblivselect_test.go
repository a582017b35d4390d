package oa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maczac150/RingOA-dev-sub002/internal/testutil"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// This file is the block-payload analogue of oa_test.go's
// TestEvaluateSelectsDatabaseEntry: it pins EvaluateOblivSelect's XOR-ring
// cross-term selection (and shareLocalBlockVec's 2-of-3 XOR dealer split)
// against a plaintext block database, the same way the scalar OA path is
// pinned. It lives in package oa (not oa_test) because shareLocalBlockVec
// is unexported.

func setupBlockParties(t *testing.T) ([3]*rss.RSS, [party.NumParties]*netio.Channels, ring.Params) {
	t.Helper()
	params, err := ring.NewParams(16)
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

func TestEvaluateOblivSelectSelectsBlockDatabaseEntry(t *testing.T) {
	instances, chls, params := setupBlockParties(t)
	defer testutil.CloseRing(chls)

	dpfParams, err := dpf.NewParams(3, 1) // 8-entry database
	require.NoError(t, err)

	plainDB := []ring.Block{
		{Lo: 10}, {Lo: 20}, {Lo: 30}, {Lo: 40},
		{Lo: 50}, {Lo: 60}, {Lo: 70}, {Lo: 80},
	}
	dbShares, err := shareLocalBlockVec(plainDB)
	require.NoError(t, err)

	const wantIndex = 5
	idxShares, err := rss.ShareLocal(params, wantIndex)
	require.NoError(t, err)

	keys, err := GenerateBlockKeys(params, dpfParams, dpf.Iterative)
	require.NoError(t, err)

	evaluators := [3]*Evaluator{NewEvaluator(instances[0]), NewEvaluator(instances[1]), NewEvaluator(instances[2])}

	var results [3]BlockShare
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) {
			results[0], err = evaluators[0].EvaluateOblivSelect(c, keys[0], dbShares[0], idxShares[0])
			return
		},
		func(c *netio.Channels) (err error) {
			results[1], err = evaluators[1].EvaluateOblivSelect(c, keys[1], dbShares[1], idxShares[1])
			return
		},
		func(c *netio.Channels) (err error) {
			results[2], err = evaluators[2].EvaluateOblivSelect(c, keys[2], dbShares[2], idxShares[2])
			return
		},
	}))

	var opened [3]ring.Block
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) { opened[0], err = OpenBlock(instances[0], c, results[0]); return },
		func(c *netio.Channels) (err error) { opened[1], err = OpenBlock(instances[1], c, results[1]); return },
		func(c *netio.Channels) (err error) { opened[2], err = OpenBlock(instances[2], c, results[2]); return },
	}))
	for _, v := range opened {
		require.Equal(t, plainDB[wantIndex], v)
	}
}

func TestEvaluateOblivSelectRejectsMismatchedDatabaseLength(t *testing.T) {
	instances, chls, params := setupBlockParties(t)
	defer testutil.CloseRing(chls)

	dpfParams, err := dpf.NewParams(3, 1)
	require.NoError(t, err)

	keys, err := GenerateBlockKeys(params, dpfParams, dpf.Iterative)
	require.NoError(t, err)

	shortDB, err := shareLocalBlockVec([]ring.Block{{Lo: 1}, {Lo: 2}})
	require.NoError(t, err)

	idxShares, err := rss.ShareLocal(params, 0)
	require.NoError(t, err)

	evaluator := NewEvaluator(instances[0])
	_, err = evaluator.EvaluateOblivSelect(chls[0], keys[0], shortDB[0], idxShares[0])
	require.Error(t, err)
}

func TestShareLocalBlockVecRoundTripsThroughOpenBlock(t *testing.T) {
	instances, chls, _ := setupBlockParties(t)
	defer testutil.CloseRing(chls)

	want := ring.Block{Hi: 0xAAAA, Lo: 0xBBBB}
	shares, err := shareLocalBlockVec([]ring.Block{want})
	require.NoError(t, err)

	var opened [3]ring.Block
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) { opened[0], err = OpenBlock(instances[0], c, shares[0].At(0)); return },
		func(c *netio.Channels) (err error) { opened[1], err = OpenBlock(instances[1], c, shares[1].At(0)); return },
		func(c *netio.Channels) (err error) { opened[2], err = OpenBlock(instances[2], c, shares[2].At(0)); return },
	}))
	for _, v := range opened {
		require.Equal(t, want, v)
	}
}
