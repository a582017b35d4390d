// Package ass implements 2-out-of-2 additive secret sharing (ASS) for a
// pair of parties, including Beaver-triple-based multiplication, per
// spec.md §3-4.3. Unlike rss.RSS (shared by all three parties), an ASS
// instance is scoped to one specific pair of neighbours, e.g. (P0, P1);
// a party in the middle of computations spanning both its neighbours
// owns two independent ASS instances (ass_prev, ass_next), matching
// RingOaEvaluator's constructor in the original.
package ass

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
)

// Triple is a Beaver triple (a, b, c) with c = a*b (mod 2^n), split
// additively between the two parties sharing this ASS instance.
type Triple struct {
	A, B, C uint64
}

// Store holds a pre-provisioned sequence of Beaver triple shares and a
// monotonically advancing consumption index, mirroring
// AdditiveSharing2P's triple_ / triple_index_ fields.
type Store struct {
	triples []Triple
	index   int
}

// NewStore wraps a slice of triple shares (produced offline, e.g. by
// GenerateTriples) as a consumable Store.
func NewStore(triples []Triple) *Store {
	return &Store{triples: triples}
}

// Remaining returns how many triples are left unconsumed.
func (s *Store) Remaining() int { return len(s.triples) - s.index }

// GenerateTriples is the offline dealer operation: it samples n plaintext
// Beaver triples and splits each additively between the two parties,
// mirroring AdditiveSharing2P::GenerateBeaverTriples + Share(BeaverTriples).
func GenerateTriples(params ring.Params, n int) (sharesP0, sharesP1 []Triple, err error) {
	sharesP0 = make([]Triple, n)
	sharesP1 = make([]Triple, n)
	for i := 0; i < n; i++ {
		a, err := randomRingValue(params)
		if err != nil {
			return nil, nil, err
		}
		b, err := randomRingValue(params)
		if err != nil {
			return nil, nil, err
		}
		c := params.Mul(a, b)

		a0, err := randomRingValue(params)
		if err != nil {
			return nil, nil, err
		}
		b0, err := randomRingValue(params)
		if err != nil {
			return nil, nil, err
		}
		c0, err := randomRingValue(params)
		if err != nil {
			return nil, nil, err
		}

		sharesP0[i] = Triple{A: a0, B: b0, C: c0}
		sharesP1[i] = Triple{
			A: params.Sub(a, a0),
			B: params.Sub(b, b0),
			C: params.Sub(c, c0),
		}
	}
	return sharesP0, sharesP1, nil
}

func randomRingValue(params ring.Params) (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("ass: sampling randomness: %v: %w", err, errs.ErrResourceExhaustion)
	}
	return params.Reduce(binary.LittleEndian.Uint64(buf[:])), nil
}

// Role distinguishes the two endpoints of an ASS pair, matching the
// original's party_id argument to EvaluateMult/Reconst (0 or 1); only
// role 0 adds the cross term once in EvaluateMult to avoid double
// counting.
type Role uint8

const (
	RoleFirst  Role = 0
	RoleSecond Role = 1
)

// ASS is one endpoint's view of a 2-party additively shared state,
// scoped to a specific neighbour pair and owning that pair's Beaver
// triple store.
type ASS struct {
	role    Role
	params  ring.Params
	triples *Store
}

// New constructs an ASS endpoint. triples is typically the output of
// GenerateTriples for this party's role.
func New(role Role, params ring.Params, triples *Store) *ASS {
	return &ASS{role: role, params: params, triples: triples}
}

// Share splits a plaintext scalar additively for this pair.
func Share(params ring.Params, x uint64) (x0, x1 uint64, err error) {
	x0, err = randomRingValue(params)
	if err != nil {
		return 0, 0, err
	}
	x1 = params.Sub(x, x0)
	return x0, x1, nil
}

// ReconstLocal combines two local shares without communication (used
// when both halves are already known locally, e.g. right after Share).
func (a *ASS) ReconstLocal(x0, x1 uint64) uint64 {
	return a.params.Add(x0, x1)
}

// Reconst is the single-round mutual open: each endpoint sends its own
// share over chl and receives the other's, so both learn the plaintext
// after one round, matching spec.md §4.3's Reconst contract.
func (a *ASS) Reconst(chl netio.Channel, mine uint64) (uint64, error) {
	if err := chl.SendUint64(mine); err != nil {
		return 0, err
	}
	other, err := chl.RecvUint64()
	if err != nil {
		return 0, err
	}
	return a.params.Add(mine, other), nil
}

// EvaluateAdd/-Sub are local, componentwise.
func (a *ASS) EvaluateAdd(x, y uint64) uint64 { return a.params.Add(x, y) }
func (a *ASS) EvaluateSub(x, y uint64) uint64 { return a.params.Sub(x, y) }

// EvaluateMult runs the one-round Beaver-triple multiplication:
// d_i = x_i - a_i, e_i = y_i - b_i are opened by one exchange, then
// each party sets z_i = [role==0]*d*e + d*b_i + e*a_i + c_i. Consumes
// exactly one triple.
func (a *ASS) EvaluateMult(chl netio.Channel, x, y uint64) (uint64, error) {
	t, err := a.nextTriple()
	if err != nil {
		return 0, err
	}
	p := a.params
	dMine := p.Sub(x, t.A)
	eMine := p.Sub(y, t.B)

	if err := chl.SendUint64(dMine); err != nil {
		return 0, err
	}
	if err := chl.SendUint64(eMine); err != nil {
		return 0, err
	}
	dOther, err := chl.RecvUint64()
	if err != nil {
		return 0, err
	}
	eOther, err := chl.RecvUint64()
	if err != nil {
		return 0, err
	}

	d := p.Add(dMine, dOther)
	e := p.Add(eMine, eOther)

	z := p.Add(p.Add(p.Mul(d, t.B), p.Mul(e, t.A)), t.C)
	if a.role == RoleFirst {
		z = p.Add(z, p.Mul(d, e))
	}
	return z, nil
}

// EvaluateSelect returns x if c=0 else y: x + c*(y-x) via one
// EvaluateMult call.
func (a *ASS) EvaluateSelect(chl netio.Channel, x, y, c uint64) (uint64, error) {
	diff := a.EvaluateSub(y, x)
	prod, err := a.EvaluateMult(chl, c, diff)
	if err != nil {
		return 0, err
	}
	return a.EvaluateAdd(x, prod), nil
}

func (a *ASS) nextTriple() (Triple, error) {
	if a.triples.Remaining() <= 0 {
		return Triple{}, fmt.Errorf("ass: out of Beaver triples: %w", errs.ErrResourceExhaustion)
	}
	t := a.triples.triples[a.triples.index]
	a.triples.index++
	return t, nil
}

// TripleIndex returns the current consumption index, for tests that
// assert deterministic advancement per spec.md §8.
func (a *ASS) TripleIndex() int { return a.triples.index }
