// Package cluster models the groups of field slices the container
// allocator places as one unit, and searches for consistent container
// offsets of those groups.
//
// An AlignedCluster holds slices that must start at the same container
// bit. A RotationalCluster groups aligned clusters that may rotate
// together. A SliceList is an ordered run of slices laid out contiguously,
// least significant first, in one container. A SuperCluster is everything
// transitively connected through slice lists.
//
// Clusters are identified by small integer ids issued by a Registry; an
// alignment maps those ids to start offsets.
package cluster

import (
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// AlignedCluster is a set of slices sharing one container start offset.
type AlignedCluster struct {
	id     int
	slices []field.FieldSlice
}

// ID returns the registry handle of the cluster.
func (c *AlignedCluster) ID() int { return c.id }

// Slices returns the member slices in insertion order.
func (c *AlignedCluster) Slices() []field.FieldSlice { return c.slices }

// MaxWidth returns the width of the widest member slice.
func (c *AlignedCluster) MaxWidth() int {
	w := 0
	for _, s := range c.slices {
		w = max(w, s.Size())
	}
	return w
}

// RotationalCluster is an ordered set of aligned clusters.
type RotationalCluster struct {
	id       int
	clusters []*AlignedCluster
}

func (r *RotationalCluster) ID() int { return r.id }

func (r *RotationalCluster) Clusters() []*AlignedCluster { return r.clusters }

// SliceList is an ordered sequence of slices placed contiguously in one
// container. The first slice occupies the lowest container bits.
type SliceList struct {
	Slices []field.FieldSlice
}

// Width returns the total number of bits in the list.
func (l *SliceList) Width() int {
	w := 0
	for _, s := range l.Slices {
		w += s.Size()
	}
	return w
}

// Registry issues cluster ids for one analysis run.
type Registry struct {
	aligned    []*AlignedCluster
	rotational []*RotationalCluster
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// NewAligned creates an aligned cluster over slices.
func (r *Registry) NewAligned(slices ...field.FieldSlice) *AlignedCluster {
	c := &AlignedCluster{id: len(r.aligned), slices: append([]field.FieldSlice(nil), slices...)}
	r.aligned = append(r.aligned, c)
	return c
}

// NewRotational creates a rotational cluster over clusters.
func (r *Registry) NewRotational(clusters ...*AlignedCluster) *RotationalCluster {
	rc := &RotationalCluster{id: len(r.rotational), clusters: append([]*AlignedCluster(nil), clusters...)}
	r.rotational = append(r.rotational, rc)
	return rc
}

// Aligned returns the aligned cluster with the given id, or nil.
func (r *Registry) Aligned(id int) *AlignedCluster {
	if id < 0 || id >= len(r.aligned) {
		return nil
	}
	return r.aligned[id]
}

// NumAligned returns the number of aligned clusters issued.
func (r *Registry) NumAligned() int { return len(r.aligned) }

// SuperCluster is one allocation unit.
type SuperCluster struct {
	Uid        int
	rotational []*RotationalCluster
	lists      []*SliceList
	owner      map[field.FieldSlice]*AlignedCluster
}

// NewSuperCluster checks that every slice belongs to exactly one aligned
// cluster and that every slice-list member is one of those slices.
func NewSuperCluster(uid int, rots []*RotationalCluster, lists []*SliceList) (*SuperCluster, error) {
	sc := &SuperCluster{
		Uid:        uid,
		rotational: rots,
		lists:      lists,
		owner:      make(map[field.FieldSlice]*AlignedCluster),
	}
	for _, rc := range rots {
		for _, ac := range rc.clusters {
			for _, s := range ac.slices {
				if prev, dup := sc.owner[s]; dup && prev != ac {
					return nil, diag.Fatalf(diag.Pos{}, "supercluster %d: slice of field %d %s in aligned clusters %d and %d",
						uid, s.Field, s.Range, prev.id, ac.id)
				}
				sc.owner[s] = ac
			}
		}
	}
	for i, l := range lists {
		if len(l.Slices) == 0 {
			return nil, diag.Fatalf(diag.Pos{}, "supercluster %d: slice list %d is empty", uid, i)
		}
		for _, s := range l.Slices {
			if _, ok := sc.owner[s]; !ok {
				return nil, diag.Fatalf(diag.Pos{}, "supercluster %d: slice list %d names slice of field %d %s with no aligned cluster",
					uid, i, s.Field, s.Range)
			}
		}
	}
	return sc, nil
}

// Rotational returns the rotational clusters in order.
func (sc *SuperCluster) Rotational() []*RotationalCluster { return sc.rotational }

// SliceLists returns the slice lists in order.
func (sc *SuperCluster) SliceLists() []*SliceList { return sc.lists }

// AlignedClusters returns every aligned cluster in rotational order.
func (sc *SuperCluster) AlignedClusters() []*AlignedCluster {
	var out []*AlignedCluster
	for _, rc := range sc.rotational {
		out = append(out, rc.clusters...)
	}
	return out
}

// ClusterOf returns the aligned cluster owning s.
func (sc *SuperCluster) ClusterOf(s field.FieldSlice) (*AlignedCluster, bool) {
	ac, ok := sc.owner[s]
	return ac, ok
}

// NumSlices returns the number of distinct member slices.
func (sc *SuperCluster) NumSlices() int { return len(sc.owner) }
