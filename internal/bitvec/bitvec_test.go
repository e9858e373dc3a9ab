package bitvec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitvec_SetTestClear(t *testing.T) {
	var b Bitvec
	require.True(t, b.Empty())

	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(200)
	b.Set(-1)

	assert.True(t, b.Test(0))
	assert.True(t, b.Test(63))
	assert.True(t, b.Test(64))
	assert.True(t, b.Test(200))
	assert.False(t, b.Test(1))
	assert.False(t, b.Test(1000))
	assert.Equal(t, 4, b.Count())
	assert.Equal(t, []int{0, 63, 64, 200}, b.Bits())

	b.Clear(63)
	assert.False(t, b.Test(63))
	assert.Equal(t, "{0,64,200}", b.String())
}

func TestBitvec_SetAlgebra(t *testing.T) {
	a := Range(0, 8)
	b := Range(4, 8)

	assert.Equal(t, []int{4, 5, 6, 7}, a.And(b).Bits())
	assert.Equal(t, 12, a.Or(b).Count())

	var wide Bitvec
	wide.Set(130)
	assert.True(t, a.And(wide).Empty())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 130}, a.Or(wide).Bits())
}

func TestBitvec_Equal(t *testing.T) {
	a := Range(0, 3)
	b := Range(0, 3)
	b.Set(100)
	b.Clear(100)
	assert.True(t, a.Equal(b), "trailing zero words must not affect equality")

	c := a.Clone()
	c.Set(5)
	assert.False(t, a.Equal(c))
	assert.False(t, a.Test(5), "clone must be independent")
}

func TestSymMatrix(t *testing.T) {
	m := NewSymMatrix(2)
	m.Set(0, 5)
	m.Set(3, 1)

	assert.Equal(t, 6, m.Size())
	assert.True(t, m.Test(5, 0))
	assert.True(t, m.Test(1, 3))
	assert.False(t, m.Test(0, 1))
	assert.False(t, m.Test(9, 0))
	assert.Equal(t, 2, m.Count())

	var pairs [][2]int
	m.Pairs(func(i, j int) { pairs = append(pairs, [2]int{i, j}) })
	assert.Equal(t, [][2]int{{0, 5}, {1, 3}}, pairs)

	clone := m.Clone()
	m.Clear(5, 0)
	assert.False(t, m.Test(0, 5))
	assert.True(t, clone.Test(0, 5))

	m.Reset()
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 6, m.Size())
}
