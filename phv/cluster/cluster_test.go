package cluster

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/phvkit/internal/bitvec"
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/phv/stackinfo"
	"github.com/joshuapare/phvkit/pkg/diag"
)

func alignment(pairs ...int) *ScAllocAlignment {
	a := NewScAllocAlignment()
	for i := 0; i+1 < len(pairs); i += 2 {
		a.Pin(pairs[i], pairs[i+1])
	}
	return a
}

func TestScAllocAlignment_Merge(t *testing.T) {
	a := alignment(0, 0, 1, 4)

	t.Run("conflicting offsets", func(t *testing.T) {
		merged, ok := a.Merge(alignment(1, 5))
		assert.False(t, ok)
		assert.Nil(t, merged)
	})

	t.Run("consistent", func(t *testing.T) {
		merged, ok := a.Merge(alignment(2, 8, 1, 4))
		require.True(t, ok)
		assert.Equal(t, "{0:0, 1:4, 2:8}", merged.String())
		assert.Equal(t, 2, a.Len(), "inputs are not modified")
	})

	t.Run("pin", func(t *testing.T) {
		b := alignment(3, 1)
		assert.True(t, b.Pin(3, 1))
		assert.False(t, b.Pin(3, 2))
		s, ok := b.Start(3)
		require.True(t, ok)
		assert.Equal(t, 1, s)
	})

	t.Run("fingerprint ignores insertion order", func(t *testing.T) {
		assert.Equal(t, alignment(0, 0, 1, 4).Fingerprint(), alignment(1, 4, 0, 0).Fingerprint())
		assert.NotEqual(t, alignment(0, 0, 1, 4).Fingerprint(), alignment(0, 0, 1, 5).Fingerprint())
	})
}

func TestSliceStarts(t *testing.T) {
	db := field.NewDatabase()
	plain, _ := db.Add("m.plain", 4)
	aligned, _ := db.Add("h.aligned", 8, field.WithAlignment(0))
	tiny, _ := db.Add("h.tiny", 4, field.WithAlignment(2))
	ranged, _ := db.Add("m.ranged", 4, field.WithValidRange(field.BitRange{Lo: 0, Hi: 7}))

	tests := []struct {
		name  string
		f     *field.Field
		slice field.FieldSlice
		width int
		want  []int
	}{
		{"unconstrained", plain, plain.Whole(), 8, []int{0, 1, 2, 3, 4}},
		{"alignment", tiny, tiny.Whole(), 8, []int{2}},
		{"aligned upper slice", aligned, field.FieldSlice{Field: aligned.ID, Range: field.BitRange{Lo: 4, Hi: 7}}, 16, []int{4, 12}},
		{"valid range", ranged, ranged.Whole(), 32, []int{0, 1, 2, 3, 4}},
		{"too wide", aligned, aligned.Whole(), 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SliceStarts(tt.f, tt.slice, tt.width)
			if tt.want == nil {
				assert.True(t, got.Empty())
				return
			}
			assert.Equal(t, tt.want, got.Bits())
		})
	}
}

func TestValidContainerStart(t *testing.T) {
	db := field.NewDatabase()
	a, _ := db.Add("h.a", 4, field.WithAlignment(1))
	b, _ := db.Add("m.b", 4, field.WithValidRange(field.BitRange{Lo: 0, Hi: 11}))
	wide, _ := db.Add("m.wide", 16)

	reg := NewRegistry()
	ac := reg.NewAligned(a.Whole(), b.Whole())
	got, err := ac.ValidContainerStart(db, 16)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.Bits(), "9 would overrun the valid range of m.b")

	wc := reg.NewAligned(wide.Whole(), a.Whole())
	got, err = wc.ValidContainerStart(db, 8)
	require.NoError(t, err)
	assert.True(t, got.Empty())

	bogus := reg.NewAligned(field.FieldSlice{Field: 99, Range: field.BitRange{Lo: 0, Hi: 0}})
	_, err = bogus.ValidContainerStart(db, 8)
	assert.True(t, errors.Is(err, diag.ErrInternal))
}

type fixture struct {
	db   *field.Database
	reg  *Registry
	f    map[string]*field.Field
	clus map[string]*AlignedCluster
}

// newFixture creates 4-bit metadata fields and one aligned cluster per
// group, where a group lists field names.
func newFixture(t *testing.T, groups ...[]string) *fixture {
	t.Helper()
	fx := &fixture{db: field.NewDatabase(), reg: NewRegistry(), f: map[string]*field.Field{}, clus: map[string]*AlignedCluster{}}
	for _, g := range groups {
		var slices []field.FieldSlice
		for _, name := range g {
			f, err := fx.db.Add(name, 4, field.WithFlags(field.FlagMetadata))
			require.NoError(t, err)
			fx.f[name] = f
			slices = append(slices, f.Whole())
		}
		ac := fx.reg.NewAligned(slices...)
		for _, name := range g {
			fx.clus[name] = ac
		}
	}
	return fx
}

func (fx *fixture) list(names ...string) *SliceList {
	l := &SliceList{}
	for _, n := range names {
		l.Slices = append(l.Slices, fx.f[n].Whole())
	}
	return l
}

func (fx *fixture) super(t *testing.T, lists ...*SliceList) *SuperCluster {
	t.Helper()
	var rots []*RotationalCluster
	seen := map[*AlignedCluster]bool{}
	for i := 0; i < fx.reg.NumAligned(); i++ {
		ac := fx.reg.Aligned(i)
		if !seen[ac] {
			seen[ac] = true
			rots = append(rots, fx.reg.NewRotational(ac))
		}
	}
	sc, err := NewSuperCluster(7, rots, lists)
	require.NoError(t, err)
	return sc
}

func TestSliceListAlignments(t *testing.T) {
	fx := newFixture(t, []string{"a"}, []string{"b"})
	l := fx.list("a", "b")
	sc := fx.super(t, l)

	got, err := sc.SliceListAlignments(fx.db, l, 8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "{0:0, 1:4}", got[0].String())

	got, err = sc.SliceListAlignments(fx.db, l, 16)
	require.NoError(t, err)
	assert.Len(t, got, 9)

	got, err = sc.SliceListAlignments(fx.db, fx.list("a", "b", "a"), 16)
	require.NoError(t, err)
	assert.Empty(t, got, "one cluster cannot take two offsets in a list")
}

func TestAlignments(t *testing.T) {
	fx := newFixture(t, []string{"a"}, []string{"b", "d"}, []string{"e"})
	sc := fx.super(t, fx.list("a", "b"), fx.list("d", "e"))

	t.Run("shared cluster conflicts", func(t *testing.T) {
		got, err := sc.Alignments(fx.db, 8, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unbounded", func(t *testing.T) {
		got, err := sc.Alignments(fx.db, 16, 0)
		require.NoError(t, err)
		require.Len(t, got, 5)
		for _, a := range got {
			sa, _ := a.Start(fx.clus["a"].ID())
			sb, _ := a.Start(fx.clus["b"].ID())
			se, _ := a.Start(fx.clus["e"].ID())
			assert.Equal(t, sa+4, sb)
			assert.Equal(t, sb+4, se)
		}
		assert.Equal(t, "{0:0, 1:4, 2:8}", got[0].String())
	})

	t.Run("bounded", func(t *testing.T) {
		got, err := sc.Alignments(fx.db, 16, 3)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("list too wide", func(t *testing.T) {
		got, err := sc.Alignments(fx.db, 4, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no slice lists", func(t *testing.T) {
		bare := newFixture(t, []string{"x"}).super(t)
		got, err := bare.Alignments(fx.db, 8, 4)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 0, got[0].Len())
	})
}

func TestNewSuperCluster_Invalid(t *testing.T) {
	fx := newFixture(t, []string{"a"}, []string{"b"})
	rot := fx.reg.NewRotational(fx.clus["a"])

	_, err := NewSuperCluster(1, []*RotationalCluster{rot}, []*SliceList{fx.list("a", "b")})
	assert.True(t, errors.Is(err, diag.ErrFatal), "b has no aligned cluster in the supercluster")

	dup := fx.reg.NewAligned(fx.f["a"].Whole())
	_, err = NewSuperCluster(1, []*RotationalCluster{rot, fx.reg.NewRotational(dup)}, nil)
	assert.True(t, errors.Is(err, diag.ErrFatal))

	_, err = NewSuperCluster(1, []*RotationalCluster{rot}, []*SliceList{{}})
	assert.True(t, errors.Is(err, diag.ErrFatal))
}

func TestTransaction(t *testing.T) {
	db := field.NewDatabase()
	a, _ := db.Add("m.a", 4)
	b, _ := db.Add("m.b", 4)
	c := Container{Width: 8, Index: 0}

	root := NewTransaction()
	child := root.Fork()
	require.NoError(t, child.Assign(Placement{Slice: a.Whole(), Container: c, Lo: 0}))
	assert.Empty(t, root.Placements())

	err := child.Assign(Placement{Slice: b.Whole(), Container: c, Lo: 2})
	assert.True(t, errors.Is(err, ErrOverlap))
	assert.Error(t, child.Assign(Placement{Slice: b.Whole(), Container: c, Lo: 6}))

	require.NoError(t, child.Assign(Placement{Slice: b.Whole(), Container: c, Lo: 4}))
	require.NoError(t, child.Commit())
	assert.Len(t, root.Placements(), 2)
	assert.True(t, bitvec.Range(0, 8).Equal(root.Occupied(c)))
	assert.Equal(t, "B0[0:3] <- m.a<4> [0:3]\nB0[4:7] <- m.b<4> [0:3]\n", Describe(db, root.Placements()))

	assert.ErrorIs(t, root.Commit(), ErrNoParent)
	assert.Equal(t, "H3", Container{Width: 16, Index: 3}.String())
	assert.Equal(t, "C24_1", Container{Width: 24, Index: 1}.String())
}

type conflictAll struct{}

func (conflictAll) HasPackConflict(a, b field.FieldSlice) bool { return a.Field != b.Field }

func TestPlace(t *testing.T) {
	fx := newFixture(t, []string{"a"}, []string{"b"}, []string{"x"})
	sc := fx.super(t, fx.list("a", "b"))

	t.Run("success", func(t *testing.T) {
		res, err := Place(fx.db, sc, PlaceOptions{Width: 8})
		require.NoError(t, err)
		require.True(t, res.Ok())
		assert.Equal(t, "{0:0, 1:4}", res.Alignment.String())
		assert.Equal(t, "B0[0:3] <- a<4> meta [0:3]\nB0[4:7] <- b<4> meta [0:3]\nB1[0:3] <- x<4> meta [0:3]\n",
			Describe(fx.db, res.Tx.Placements()))
	})

	tests := []struct {
		name string
		opts PlaceOptions
		want ErrorCode
	}{
		{"not enough space", PlaceOptions{Width: 8, Containers: 1}, NotEnoughSpace},
		{"no alignment", PlaceOptions{Width: 6}, NoValidScAllocAlignment},
		{"pack conflict", PlaceOptions{Width: 8, Conflicts: conflictAll{}}, PackConflictPresent},
		{"too narrow", PlaceOptions{Width: 2}, ContainerTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Place(fx.db, sc, tt.opts)
			require.NoError(t, err)
			require.False(t, res.Ok())
			assert.Equal(t, tt.want, res.Err.Code)
			assert.True(t, strings.HasPrefix(res.Err.Error(), tt.want.String()))
		})
	}
}

func TestBuild(t *testing.T) {
	p, err := ir.Load(strings.NewReader(`
headers:
  - name: ipv4
    fields: [{name: version, width: 4}, {name: ihl, width: 4}, {name: tos, width: 8}, {name: len, width: 16}]
  - name: meta
    metadata: true
    fields: [{name: ver, width: 4}]
actions:
  - name: copy
    body:
      - assign: {dst: meta.ver, srcs: [ipv4.version]}
deparsers:
  - emits: [{field: ipv4.version, pov: ipv4.$valid}]
`))
	require.NoError(t, err)
	_, err = stackinfo.Collect(p)
	require.NoError(t, err)
	db, err := ir.BuildFields(p)
	require.NoError(t, err)

	reg, scs, err := Build(p, db)
	require.NoError(t, err)
	require.Len(t, scs, 4)
	assert.Equal(t, 5, reg.NumAligned())

	sc := scs[0]
	assert.Equal(t, 0, sc.Uid)
	require.Len(t, sc.SliceLists(), 1)
	l := sc.SliceLists()[0]
	require.Len(t, l.Slices, 2)
	assert.Equal(t, "ipv4.ihl", db.Name(l.Slices[0].Field))
	assert.Equal(t, "ipv4.version", db.Name(l.Slices[1].Field))
	assert.Len(t, sc.Rotational(), 2)

	ver, _ := db.Lookup("meta.ver")
	ac, ok := sc.ClusterOf(ver.Whole())
	require.True(t, ok)
	assert.Len(t, ac.Slices(), 2, "meta.ver shares the cluster of ipv4.version")

	aligns, err := sc.Alignments(db, 8, 0)
	require.NoError(t, err)
	require.Len(t, aligns, 1)
	assert.Equal(t, "{0:4, 1:0}", aligns[0].String())

	for i, sc := range scs {
		assert.Equal(t, i, sc.Uid)
	}
}

func TestBuild_UndeclaredField(t *testing.T) {
	p, err := ir.Load(strings.NewReader(`
actions:
  - name: a
    body:
      - assign: {dst: meta.ghost, srcs: [1]}
`))
	require.NoError(t, err)
	db := field.NewDatabase()
	_, _, err = Build(p, db)
	assert.True(t, errors.Is(err, diag.ErrFatal))
}
