// Package bitvec provides the growable bit vector and the dense symmetric
// bit matrix that back the mutex, no-pack and alignment computations.
package bitvec

import (
	"math/bits"
	"strconv"
	"strings"
)

const wordBits = 64

// Bitvec is a growable set of non-negative integers stored as bits.
// The zero value is an empty set ready to use.
type Bitvec struct {
	words []uint64
}

// Range returns a Bitvec with bits [lo, lo+n) set.
func Range(lo, n int) Bitvec {
	var b Bitvec
	for i := lo; i < lo+n; i++ {
		b.Set(i)
	}
	return b
}

// Set sets bit i. Negative indexes are ignored.
func (b *Bitvec) Set(i int) {
	if i < 0 {
		return
	}
	w := i / wordBits
	for len(b.words) <= w {
		b.words = append(b.words, 0)
	}
	b.words[w] |= 1 << uint(i%wordBits)
}

// Clear clears bit i.
func (b *Bitvec) Clear(i int) {
	if i < 0 || i/wordBits >= len(b.words) {
		return
	}
	b.words[i/wordBits] &^= 1 << uint(i%wordBits)
}

// Test reports whether bit i is set.
func (b Bitvec) Test(i int) bool {
	if i < 0 || i/wordBits >= len(b.words) {
		return false
	}
	return b.words[i/wordBits]&(1<<uint(i%wordBits)) != 0
}

// Empty reports whether no bit is set.
func (b Bitvec) Empty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of set bits.
func (b Bitvec) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// And returns the intersection of b and o.
func (b Bitvec) And(o Bitvec) Bitvec {
	n := min(len(b.words), len(o.words))
	out := Bitvec{words: make([]uint64, n)}
	for i := range n {
		out.words[i] = b.words[i] & o.words[i]
	}
	return out
}

// Or returns the union of b and o.
func (b Bitvec) Or(o Bitvec) Bitvec {
	long, short := b.words, o.words
	if len(short) > len(long) {
		long, short = short, long
	}
	out := Bitvec{words: append([]uint64(nil), long...)}
	for i, w := range short {
		out.words[i] |= w
	}
	return out
}

// Equal reports whether b and o hold the same bits.
func (b Bitvec) Equal(o Bitvec) bool {
	long, short := b.words, o.words
	if len(short) > len(long) {
		long, short = short, long
	}
	for i, w := range long {
		var s uint64
		if i < len(short) {
			s = short[i]
		}
		if w != s {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of b.
func (b Bitvec) Clone() Bitvec {
	return Bitvec{words: append([]uint64(nil), b.words...)}
}

// Bits returns the set bits in ascending order.
func (b Bitvec) Bits() []int {
	out := make([]int, 0, b.Count())
	for wi, w := range b.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, wi*wordBits+tz)
			w &^= 1 << uint(tz)
		}
	}
	return out
}

// String renders the set bits as "{0,8,16}".
func (b Bitvec) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, bit := range b.Bits() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(bit))
	}
	sb.WriteByte('}')
	return sb.String()
}
