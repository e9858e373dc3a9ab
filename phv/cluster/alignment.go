package cluster

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/joshuapare/phvkit/internal/bitvec"
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// ScAllocAlignment maps aligned cluster ids to container start offsets.
type ScAllocAlignment struct {
	starts map[int]int
}

// NewScAllocAlignment returns an empty alignment.
func NewScAllocAlignment() *ScAllocAlignment {
	return &ScAllocAlignment{starts: make(map[int]int)}
}

// Start returns the offset recorded for cluster id.
func (a *ScAllocAlignment) Start(id int) (int, bool) {
	s, ok := a.starts[id]
	return s, ok
}

// Pin records start for cluster id. It fails when the cluster already
// holds a different start.
func (a *ScAllocAlignment) Pin(id, start int) bool {
	if prev, ok := a.starts[id]; ok {
		return prev == start
	}
	a.starts[id] = start
	return true
}

// Len returns the number of pinned clusters.
func (a *ScAllocAlignment) Len() int { return len(a.starts) }

// IDs returns the pinned cluster ids in ascending order.
func (a *ScAllocAlignment) IDs() []int {
	ids := make([]int, 0, len(a.starts))
	for id := range a.starts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Merge returns the union of a and o, or false when a shared cluster
// carries two different starts. Neither input is modified.
func (a *ScAllocAlignment) Merge(o *ScAllocAlignment) (*ScAllocAlignment, bool) {
	out := &ScAllocAlignment{starts: make(map[int]int, len(a.starts)+len(o.starts))}
	for id, s := range a.starts {
		out.starts[id] = s
	}
	for id, s := range o.starts {
		if !out.Pin(id, s) {
			return nil, false
		}
	}
	return out, true
}

// Fingerprint hashes the (id, start) pairs in id order.
func (a *ScAllocAlignment) Fingerprint() uint64 {
	buf := make([]byte, 0, 16*len(a.starts))
	for _, id := range a.IDs() {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(a.starts[id]))
	}
	return xxhash.Sum64(buf)
}

func (a *ScAllocAlignment) String() string {
	parts := make([]string, 0, len(a.starts))
	for _, id := range a.IDs() {
		parts = append(parts, fmt.Sprintf("%d:%d", id, a.starts[id]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// SliceStarts returns the container bits at which s may start in a
// container of width w: the slice must fit the container and the field's
// valid range, and an aligned field fixes the start modulo 8.
func SliceStarts(f *field.Field, s field.FieldSlice, w int) bitvec.Bitvec {
	var out bitvec.Bitvec
	lo, hi := 0, w-1
	if f.ValidRange != nil {
		lo = max(lo, f.ValidRange.Lo)
		hi = min(hi, f.ValidRange.Hi)
	}
	size := s.Size()
	for st := lo; st+size-1 <= hi; st++ {
		if f.Alignment != nil && st%8 != (*f.Alignment+s.Range.Lo)%8 {
			continue
		}
		out.Set(st)
	}
	return out
}

// ValidContainerStart intersects SliceStarts over the member slices.
func (c *AlignedCluster) ValidContainerStart(db *field.Database, w int) (bitvec.Bitvec, error) {
	if len(c.slices) == 0 || c.MaxWidth() > w {
		return bitvec.Bitvec{}, nil
	}
	out := bitvec.Range(0, w)
	for _, s := range c.slices {
		f := db.Get(s.Field)
		if f == nil {
			return bitvec.Bitvec{}, diag.Bugf("aligned cluster %d holds slice of unknown field %d", c.id, s.Field)
		}
		out = out.And(SliceStarts(f, s, w))
	}
	return out, nil
}

type startCache struct {
	db     *field.Database
	w      int
	starts map[int]bitvec.Bitvec
}

func (sc *startCache) get(ac *AlignedCluster) (bitvec.Bitvec, error) {
	if v, ok := sc.starts[ac.id]; ok {
		return v, nil
	}
	v, err := ac.ValidContainerStart(sc.db, sc.w)
	if err != nil {
		return bitvec.Bitvec{}, err
	}
	sc.starts[ac.id] = v
	return v, nil
}

// SliceListAlignments enumerates the alignments of l in a container of
// width w. Each candidate starts l at a bit its first cluster permits and
// lays the remaining slices out contiguously.
func (sc *SuperCluster) SliceListAlignments(db *field.Database, l *SliceList, w int) ([]*ScAllocAlignment, error) {
	cache := &startCache{db: db, w: w, starts: make(map[int]bitvec.Bitvec)}
	return sc.sliceListAlignments(cache, l)
}

func (sc *SuperCluster) sliceListAlignments(cache *startCache, l *SliceList) ([]*ScAllocAlignment, error) {
	if len(l.Slices) == 0 {
		return nil, nil
	}
	owners := make([]*AlignedCluster, len(l.Slices))
	for i, s := range l.Slices {
		ac, ok := sc.owner[s]
		if !ok {
			return nil, diag.Fatalf(diag.Pos{}, "alignment requested for slice of field %d %s with no aligned cluster", s.Field, s.Range)
		}
		owners[i] = ac
	}
	first, err := cache.get(owners[0])
	if err != nil {
		return nil, err
	}
	var out []*ScAllocAlignment
next:
	for _, start := range first.Bits() {
		a := NewScAllocAlignment()
		off := start
		for i, s := range l.Slices {
			allowed, err := cache.get(owners[i])
			if err != nil {
				return nil, err
			}
			if !allowed.Test(off) || !a.Pin(owners[i].id, off) {
				continue next
			}
			off += s.Size()
		}
		out = append(out, a)
	}
	return out, nil
}

// Alignments combines the candidates of every slice list depth first and
// returns at most limit distinct consistent alignments; limit <= 0 means
// no bound. A list with no candidate at width w makes the result empty.
func (sc *SuperCluster) Alignments(db *field.Database, w, limit int) ([]*ScAllocAlignment, error) {
	if len(sc.lists) == 0 {
		return []*ScAllocAlignment{NewScAllocAlignment()}, nil
	}
	cache := &startCache{db: db, w: w, starts: make(map[int]bitvec.Bitvec)}
	cands := make([][]*ScAllocAlignment, len(sc.lists))
	for i, l := range sc.lists {
		c, err := sc.sliceListAlignments(cache, l)
		if err != nil {
			return nil, err
		}
		if len(c) == 0 {
			return nil, nil
		}
		cands[i] = c
	}

	var out []*ScAllocAlignment
	seen := make(map[uint64]bool)
	var dfs func(i int, acc *ScAllocAlignment) bool
	dfs = func(i int, acc *ScAllocAlignment) bool {
		if i == len(cands) {
			fp := acc.Fingerprint()
			if !seen[fp] {
				seen[fp] = true
				out = append(out, acc)
			}
			return limit > 0 && len(out) >= limit
		}
		for _, c := range cands[i] {
			merged, ok := acc.Merge(c)
			if !ok {
				continue
			}
			if dfs(i+1, merged) {
				return true
			}
		}
		return false
	}
	dfs(0, NewScAllocAlignment())
	return out, nil
}
