package field

import "fmt"

// BitRange is an inclusive little-endian bit interval [Lo, Hi].
type BitRange struct {
	Lo int `json:"lo" yaml:"lo"`
	Hi int `json:"hi" yaml:"hi"`
}

// StartLen returns the range of n bits starting at lo.
func StartLen(lo, n int) BitRange {
	return BitRange{Lo: lo, Hi: lo + n - 1}
}

// Size returns the number of bits in the range.
func (r BitRange) Size() int {
	return r.Hi - r.Lo + 1
}

// Valid reports whether the range is non-empty and non-negative.
func (r BitRange) Valid() bool {
	return r.Lo >= 0 && r.Hi >= r.Lo
}

// Contains reports whether bit i lies within r.
func (r BitRange) Contains(i int) bool {
	return i >= r.Lo && i <= r.Hi
}

// ContainsRange reports whether o lies entirely within r.
func (r BitRange) ContainsRange(o BitRange) bool {
	return o.Lo >= r.Lo && o.Hi <= r.Hi
}

// Overlaps reports whether r and o share at least one bit.
func (r BitRange) Overlaps(o BitRange) bool {
	return r.Lo <= o.Hi && o.Lo <= r.Hi
}

// Intersect returns the common part of r and o.
func (r BitRange) Intersect(o BitRange) (BitRange, bool) {
	out := BitRange{Lo: max(r.Lo, o.Lo), Hi: min(r.Hi, o.Hi)}
	if out.Lo > out.Hi {
		return BitRange{}, false
	}
	return out, true
}

// Shift returns r moved by n bits.
func (r BitRange) Shift(n int) BitRange {
	return BitRange{Lo: r.Lo + n, Hi: r.Hi + n}
}

// String renders the range as "[lo:hi]".
func (r BitRange) String() string {
	return fmt.Sprintf("[%d:%d]", r.Lo, r.Hi)
}
