package cmp

import (
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/ass"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

// Participant carries the state a party needs to act as one of the two
// 2-party endpoints in the (2,2)<->RSS conversion idiom (spec.md §4.6's
// "P1"/"P2"). A party with no predicate plaintext at all ("P0") passes
// a nil *Participant to Convert{ZeroTest,IntegerComparison}.
type Participant struct {
	ASS  *ass.ASS
	Chl  netio.Channel // the direct channel to Peer
	Peer party.ID
}

// component derives this endpoint's additive view of the RSS-shared
// value under test: the endpoint whose peer is its ring-Next uses only
// its A component (x_i); the endpoint whose peer is its ring-Prev uses
// A+B (x_{i+1}+x_{i+2}). Together the two views sum to exactly the
// cleartext value, with no communication.
func component(r *rss.RSS, selfID party.ID, peer party.ID, sh rss.Share) uint64 {
	if peer == selfID.Next() {
		return sh.A
	}
	return r.Params().Add(sh.A, sh.B)
}

// reshare runs the idiom's final step (spec.md §4.6 step 3): every
// party, including the non-participant, folds its predicate share
// (zero for the non-participant) into the standard 3-way Rand()-masked
// send-next/recv-prev round, producing a full RSS share of the
// predicate. This is the same mechanic rss.EvaluateMult and
// rss.EvaluateInnerProduct already use to reshare a product.
func reshare(r *rss.RSS, chls *netio.Channels, predShare uint64) (rss.Share, error) {
	zi := r.Params().Add(predShare, r.Rand())
	if err := chls.Next.SendUint64(zi); err != nil {
		return rss.Share{}, err
	}
	zPrev, err := chls.Prev.RecvUint64()
	if err != nil {
		return rss.Share{}, err
	}
	return rss.Share{A: zi, B: zPrev}, nil
}

// ConvertAndZeroTest lifts an RSS-shared value into a 2-party additive
// sharing between exactly two parties, runs ZeroTest between them, and
// reshares the {0,1} predicate as a full RSS share, per spec.md §4.6's
// standardised idiom. p is nil for the party not participating in the
// 2-party primitive ("P0"); it holds no plaintext of the predicate.
func ConvertAndZeroTest(r *rss.RSS, chls *netio.Channels, p *Participant, key ZeroTestKey, share rss.Share) (rss.Share, error) {
	var predShare uint64
	if p != nil {
		mask, err := r.PairwiseRand(p.Peer)
		if err != nil {
			return rss.Share{}, err
		}
		value := r.Params().Add(component(r, r.ID(), p.Peer, share), mask)
		predShare, err = EvaluateZeroTest(p.ASS, p.Chl, key, value)
		if err != nil {
			return rss.Share{}, err
		}
	}
	return reshare(r, chls, predShare)
}

// ConvertAndIntegerComparison is ConvertAndZeroTest's IntegerComparison
// counterpart: a,b are the two RSS shares being compared (a<b), both
// lifted via the same per-endpoint component rule.
func ConvertAndIntegerComparison(r *rss.RSS, chls *netio.Channels, p *Participant, key IntegerComparisonKey, a, b rss.Share) (rss.Share, error) {
	var predShare uint64
	if p != nil {
		mask, err := r.PairwiseRand(p.Peer)
		if err != nil {
			return rss.Share{}, err
		}
		self := r.ID()
		aShare := r.Params().Add(component(r, self, p.Peer, a), mask)
		bShare := component(r, self, p.Peer, b)
		predShare, err = EvaluateSharedInput(p.ASS, p.Chl, key, aShare, bShare)
		if err != nil {
			return rss.Share{}, err
		}
	}
	return reshare(r, chls, predShare)
}
