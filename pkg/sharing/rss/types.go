// Package rss implements 2-out-of-3 replicated secret sharing (RSS) over
// Z_2^n for the three-party ring, per spec.md §3-4.2: ShareLocal, Open,
// local Add/Sub, Rand-of-zero, Araki-style EvaluateMult, EvaluateSelect
// and EvaluateInnerProduct.
package rss

import "github.com/maczac150/RingOA-dev-sub002/pkg/ring"

// Share is one party's half of a replicated share of x in Z_2^n: the
// triple (x0, x1, x2) with x0+x1+x2 = x (mod 2^n) is split so that party
// i holds (A, B) = (x_i, x_{i+1 mod 3}); A is also held by party i-1,
// B is also held by party i+1.
type Share struct {
	A, B uint64
}

// Vec is the componentwise extension of Share to a vector of length L.
type Vec struct {
	A, B []uint64
}

// NewVec allocates a Vec of length n.
func NewVec(n int) Vec {
	return Vec{A: make([]uint64, n), B: make([]uint64, n)}
}

// Len returns the vector length.
func (v Vec) Len() int { return len(v.A) }

// At returns the Share at index i as a view (copy; Share is a value type).
func (v Vec) At(i int) Share {
	return Share{A: v.A[i], B: v.B[i]}
}

// Set writes sh into index i.
func (v Vec) Set(i int, sh Share) {
	v.A[i] = sh.A
	v.B[i] = sh.B
}

// Mat is the replicated share of a rows x cols matrix, stored flat in
// row-major order, mirroring RepShareMat64's "view into contiguous
// backing store" (spec.md §9).
type Mat struct {
	Rows, Cols int
	A, B       []uint64
}

// NewMat allocates a Mat of the given shape.
func NewMat(rows, cols int) Mat {
	return Mat{Rows: rows, Cols: cols, A: make([]uint64, rows*cols), B: make([]uint64, rows*cols)}
}

// Row returns a view (Vec) over row r of the matrix: A and B alias the
// matrix's own backing arrays, so mutating the row mutates the matrix,
// matching the teacher corpus convention of lightweight, strictly
// nested matrix views (spec.md §9's "Aliasing and views").
func (m Mat) Row(r int) Vec {
	lo, hi := r*m.Cols, (r+1)*m.Cols
	return Vec{A: m.A[lo:hi], B: m.B[lo:hi]}
}

// At returns the share at (r, c).
func (m Mat) At(r, c int) Share {
	idx := r*m.Cols + c
	return Share{A: m.A[idx], B: m.B[idx]}
}

// maskAdd/maskSub are tiny local helpers kept here (rather than re-deriving
// ring.Params at every call site) since RSS arithmetic is ubiquitous.
func maskAdd(p ring.Params, x, y uint64) uint64 { return p.Add(x, y) }
func maskSub(p ring.Params, x, y uint64) uint64 { return p.Sub(x, y) }
