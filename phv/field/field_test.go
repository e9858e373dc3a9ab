package field

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitRange(t *testing.T) {
	r := StartLen(4, 8)
	assert.Equal(t, BitRange{Lo: 4, Hi: 11}, r)
	assert.Equal(t, 8, r.Size())
	assert.True(t, r.Contains(4))
	assert.False(t, r.Contains(12))
	assert.True(t, r.Overlaps(BitRange{Lo: 11, Hi: 20}))
	assert.False(t, r.Overlaps(BitRange{Lo: 12, Hi: 20}))
	assert.True(t, r.ContainsRange(BitRange{Lo: 5, Hi: 6}))
	assert.Equal(t, "[4:11]", r.String())

	in, ok := r.Intersect(BitRange{Lo: 10, Hi: 30})
	require.True(t, ok)
	assert.Equal(t, BitRange{Lo: 10, Hi: 11}, in)

	_, ok = r.Intersect(BitRange{Lo: 0, Hi: 3})
	assert.False(t, ok)
	assert.False(t, BitRange{Lo: 3, Hi: 2}.Valid())
}

func TestDatabase_AddAndLookup(t *testing.T) {
	db := NewDatabase()
	a, err := db.Add("hdr.ipv4.ttl", 8, WithHeader("hdr.ipv4"))
	require.NoError(t, err)
	b, err := db.Add("meta.port", 9, WithFlags(FlagMetadata|FlagBridged), WithGress(Egress))
	require.NoError(t, err)

	assert.Equal(t, FieldID(0), a.ID)
	assert.Equal(t, FieldID(1), b.ID)
	assert.True(t, b.IsMetadata())
	assert.True(t, b.IsBridged())
	assert.False(t, b.IsPOV())
	assert.Equal(t, Egress, b.Gress)

	got, ok := db.Lookup("meta.port")
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Nil(t, db.Get(7))

	_, err = db.Add("meta.port", 9)
	assert.True(t, errors.Is(err, ErrDuplicateField))
	_, err = db.Add("zero", 0)
	assert.True(t, errors.Is(err, ErrBadSize))
	_, err = db.MustLookup("nope")
	assert.True(t, errors.Is(err, ErrUnknownField))

	assert.Equal(t, []string{"hdr.ipv4.ttl", "meta.port"}, db.Names())
}

func TestFieldSlices(t *testing.T) {
	db := NewDatabase()
	f, err := db.Add("hdr.eth.dst", 48)
	require.NoError(t, err)

	whole := f.Whole()
	assert.Equal(t, 48, whole.Size())

	lo, err := f.Slice(BitRange{Lo: 0, Hi: 15})
	require.NoError(t, err)
	hi, err := f.Slice(BitRange{Lo: 16, Hi: 47})
	require.NoError(t, err)

	assert.True(t, whole.Overlaps(lo))
	assert.False(t, lo.Overlaps(hi))
	assert.Equal(t, lo, FieldSlice{Field: f.ID, Range: BitRange{Lo: 0, Hi: 15}}, "slices compare structurally")

	_, err = f.Slice(BitRange{Lo: 40, Hi: 48})
	assert.Error(t, err)
}

func TestSliceString(t *testing.T) {
	db := NewDatabase()
	plain, _ := db.Add("ingress::hdr.ipv4.ihl", 4, WithFlags(FlagDeparsed))
	aligned, _ := db.Add("ingress::meta.qid", 5,
		WithAlignment(3),
		WithValidRange(BitRange{Lo: 0, Hi: 15}),
		WithFlags(FlagMetadata|FlagBridged|FlagNoSplit))

	assert.Equal(t, "ingress::hdr.ipv4.ihl<4> deparsed [0:3]", db.SliceString(plain.Whole()))
	assert.Equal(t,
		"ingress::meta.qid<5> ^3 ^bit[0..15] bridge meta no_split [1:4]",
		db.SliceString(FieldSlice{Field: aligned.ID, Range: BitRange{Lo: 1, Hi: 4}}))
	assert.Equal(t, "-NULL-", db.SliceString(FieldSlice{Field: NoField}))
}

func TestFlags(t *testing.T) {
	fl, ok := ParseFlag("never_overlay")
	require.True(t, ok)
	assert.Equal(t, FlagNeverOverlay, fl)
	_, ok = ParseFlag("bogus")
	assert.False(t, ok)
	assert.Equal(t, []string{"pov", "deparsed"}, (FlagDeparsed | FlagPOV).Names())

	g, err := ParseGress("EGRESS")
	require.NoError(t, err)
	assert.Equal(t, Egress, g)
	_, err = ParseGress("ghost")
	assert.Error(t, err)
}
