package cmp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maczac150/RingOA-dev-sub002/internal/testutil"
	"github.com/maczac150/RingOA-dev-sub002/pkg/cmp"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/ass"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

func setup(t *testing.T) ([3]*rss.RSS, [party.NumParties]*netio.Channels, ring.Params) {
	t.Helper()
	params, err := ring.NewParams(8)
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

func runZeroTest(t *testing.T, value uint64) [3]uint64 {
	t.Helper()
	instances, chls, params := setup(t)
	defer testutil.CloseRing(chls)

	dpfParams, err := dpf.NewParams(8, 2)
	require.NoError(t, err)

	shares, err := rss.ShareLocal(params, value)
	require.NoError(t, err)

	key1, key2, err := cmp.GenerateZeroTestKeys(params, dpfParams)
	require.NoError(t, err)

	assStore := ass.NewStore(nil)
	ass1 := ass.New(ass.RoleFirst, params, assStore)
	ass2 := ass.New(ass.RoleSecond, params, assStore)

	var preds [3]rss.Share
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) {
			preds[0], err = cmp.ConvertAndZeroTest(instances[0], c, nil, cmp.ZeroTestKey{}, shares[0])
			return
		},
		func(c *netio.Channels) (err error) {
			p := &cmp.Participant{ASS: ass1, Chl: c.Next, Peer: party.P2}
			preds[1], err = cmp.ConvertAndZeroTest(instances[1], c, p, key1, shares[1])
			return
		},
		func(c *netio.Channels) (err error) {
			p := &cmp.Participant{ASS: ass2, Chl: c.Prev, Peer: party.P1}
			preds[2], err = cmp.ConvertAndZeroTest(instances[2], c, p, key2, shares[2])
			return
		},
	}))

	var opened [3]uint64
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) { opened[0], err = instances[0].Open(c, preds[0]); return },
		func(c *netio.Channels) (err error) { opened[1], err = instances[1].Open(c, preds[1]); return },
		func(c *netio.Channels) (err error) { opened[2], err = instances[2].Open(c, preds[2]); return },
	}))
	return opened
}

func TestZeroTestDetectsZero(t *testing.T) {
	opened := runZeroTest(t, 0)
	for _, v := range opened {
		require.EqualValues(t, 1, v)
	}
}

func TestZeroTestRejectsNonZero(t *testing.T) {
	opened := runZeroTest(t, 7)
	for _, v := range opened {
		require.EqualValues(t, 0, v)
	}
}

func runIntegerComparison(t *testing.T, a, b uint64) [3]uint64 {
	t.Helper()
	instances, chls, params := setup(t)
	defer testutil.CloseRing(chls)

	aShares, err := rss.ShareLocal(params, a)
	require.NoError(t, err)
	bShares, err := rss.ShareLocal(params, b)
	require.NoError(t, err)

	key1, key2, err := cmp.GenerateIntegerComparisonKeys(params, 4)
	require.NoError(t, err)

	assStore := ass.NewStore(nil)
	ass1 := ass.New(ass.RoleFirst, params, assStore)
	ass2 := ass.New(ass.RoleSecond, params, assStore)

	var preds [3]rss.Share
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) {
			preds[0], err = cmp.ConvertAndIntegerComparison(instances[0], c, nil, cmp.IntegerComparisonKey{}, aShares[0], bShares[0])
			return
		},
		func(c *netio.Channels) (err error) {
			p := &cmp.Participant{ASS: ass1, Chl: c.Next, Peer: party.P2}
			preds[1], err = cmp.ConvertAndIntegerComparison(instances[1], c, p, key1, aShares[1], bShares[1])
			return
		},
		func(c *netio.Channels) (err error) {
			p := &cmp.Participant{ASS: ass2, Chl: c.Prev, Peer: party.P1}
			preds[2], err = cmp.ConvertAndIntegerComparison(instances[2], c, p, key2, aShares[2], bShares[2])
			return
		},
	}))

	var opened [3]uint64
	require.NoError(t, testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) { opened[0], err = instances[0].Open(c, preds[0]); return },
		func(c *netio.Channels) (err error) { opened[1], err = instances[1].Open(c, preds[1]); return },
		func(c *netio.Channels) (err error) { opened[2], err = instances[2].Open(c, preds[2]); return },
	}))
	return opened
}

func TestIntegerComparisonLessThan(t *testing.T) {
	opened := runIntegerComparison(t, 3, 9)
	for _, v := range opened {
		require.EqualValues(t, 1, v)
	}
}

func TestIntegerComparisonNotLessThan(t *testing.T) {
	opened := runIntegerComparison(t, 9, 3)
	for _, v := range opened {
		require.EqualValues(t, 0, v)
	}
}
