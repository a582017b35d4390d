package ring

// Params describes the Z_2^n ring a protocol instance operates over.
// n is never larger than 64: all ring elements are carried in a native
// uint64 and reduced modulo 2^n.
type Params struct {
	N uint // ring bit-width, 1 <= N <= 64
}

// NewParams validates and constructs a ring parameter object.
func NewParams(n uint) (Params, error) {
	if n == 0 || n > 64 {
		return Params{}, errConfig("ring bit-width must be in [1, 64], got %d", n)
	}
	return Params{N: n}, nil
}

// Mask returns the bitmask selecting the low N bits of a uint64 value,
// i.e. reduction modulo 2^N.
func (p Params) Mask() uint64 {
	if p.N == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << p.N) - 1
}

// Reduce reduces x modulo 2^N.
func (p Params) Reduce(x uint64) uint64 {
	return x & p.Mask()
}

// Add returns (x+y) mod 2^N.
func (p Params) Add(x, y uint64) uint64 {
	return p.Reduce(x + y)
}

// Sub returns (x-y) mod 2^N.
func (p Params) Sub(x, y uint64) uint64 {
	return p.Reduce(x - y)
}

// Mul returns (x*y) mod 2^N.
func (p Params) Mul(x, y uint64) uint64 {
	return p.Reduce(x * y)
}

// Neg returns (-x) mod 2^N.
func (p Params) Neg(x uint64) uint64 {
	return p.Reduce(-x)
}
