package cluster

import (
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// unionFind over dense integer ids, smallest id as representative.
type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) find(i int) int {
	for uf[i] != i {
		uf[i] = uf[uf[i]]
		i = uf[i]
	}
	return i
}

func (uf unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	uf[rb] = ra
}

// Build groups every field of db into superclusters.
//
// Fields moved into one another by a whole-field assignment of equal
// width form one aligned cluster; each aligned cluster is its own
// rotational cluster. Every deparsed header instance contributes slice
// lists in container order (the last wire field lowest), cut at byte
// boundaries; lists of a single slice are dropped. Rotational clusters
// joined by a slice list share a supercluster. Uids follow construction
// order.
func Build(p *ir.Program, db *field.Database) (*Registry, []*SuperCluster, error) {
	uf := newUnionFind(db.Len())
	for i := range p.Actions {
		for _, st := range p.Actions[i].Body {
			as, ok := st.(*ir.Assign)
			if !ok || as.Dst.Range != nil {
				continue
			}
			dst, ok := db.Lookup(as.Dst.Field)
			if !ok {
				return nil, nil, diag.Fatalf(as.At, "assignment to undeclared field %s", as.Dst.Field)
			}
			for _, op := range as.Srcs {
				ref, ok := op.(ir.FieldRef)
				if !ok || ref.Range != nil {
					continue
				}
				src, ok := db.Lookup(ref.Field)
				if !ok {
					return nil, nil, diag.Fatalf(as.At, "assignment reads undeclared field %s", ref.Field)
				}
				if src.Size == dst.Size {
					uf.union(int(dst.ID), int(src.ID))
				}
			}
		}
	}

	reg := NewRegistry()
	members := make(map[int][]field.FieldSlice)
	var roots []int
	for _, f := range db.All() {
		r := uf.find(int(f.ID))
		if _, ok := members[r]; !ok {
			roots = append(roots, r)
		}
		members[r] = append(members[r], f.Whole())
	}
	owner := make([]*AlignedCluster, db.Len())
	var rots []*RotationalCluster
	for _, r := range roots {
		ac := reg.NewAligned(members[r]...)
		for _, s := range ac.slices {
			owner[s.Field] = ac
		}
		rots = append(rots, reg.NewRotational(ac))
	}

	lists := headerSliceLists(p, db)

	// aligned and rotational ids coincide here
	scUF := newUnionFind(len(rots))
	for _, l := range lists {
		first := owner[l.Slices[0].Field].id
		for _, s := range l.Slices[1:] {
			scUF.union(first, owner[s.Field].id)
		}
	}
	type group struct {
		rots  []*RotationalCluster
		lists []*SliceList
	}
	groups := make(map[int]*group)
	var order []int
	for _, rc := range rots {
		r := scUF.find(rc.id)
		g, ok := groups[r]
		if !ok {
			g = &group{}
			groups[r] = g
			order = append(order, r)
		}
		g.rots = append(g.rots, rc)
	}
	for _, l := range lists {
		r := scUF.find(owner[l.Slices[0].Field].id)
		groups[r].lists = append(groups[r].lists, l)
	}

	out := make([]*SuperCluster, 0, len(order))
	for uid, r := range order {
		sc, err := NewSuperCluster(uid, groups[r].rots, groups[r].lists)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, sc)
	}
	return reg, out, nil
}

func headerSliceLists(p *ir.Program, db *field.Database) []*SliceList {
	var out []*SliceList
	for i := range p.Headers {
		h := &p.Headers[i]
		for _, inst := range h.Instances() {
			var fs []*field.Field
			deparsed := false
			for _, fd := range h.Fields {
				f, ok := db.Lookup(ir.FieldName(inst, fd.Name))
				if !ok {
					continue
				}
				fs = append(fs, f)
				deparsed = deparsed || f.IsDeparsed()
			}
			if !deparsed {
				continue
			}
			var cur []field.FieldSlice
			bits := 0
			flush := func() {
				if len(cur) > 1 {
					out = append(out, &SliceList{Slices: cur})
				}
				cur, bits = nil, 0
			}
			for j := len(fs) - 1; j >= 0; j-- {
				cur = append(cur, fs[j].Whole())
				bits += fs[j].Size
				if bits%8 == 0 {
					flush()
				}
			}
			flush()
		}
	}
	return out
}
