// Package nopack computes pack conflicts: pairs of field slices that must
// never share a container, whatever their liveness.
//
// Conflicts are recorded at two granularities. Field-level conflicts come
// from the deparser, user directives and digests and cover every slice of
// both fields. Slice-level conflicts come from table co-residency and are
// stored in a dense matrix indexed by ids issued to slices in first
// registration order.
package nopack

import (
	"github.com/joshuapare/phvkit/internal/bitvec"
	"github.com/joshuapare/phvkit/phv/field"
)

// PackConflicts is the no-pack relation of one analysis run.
type PackConflicts struct {
	ids     map[field.FieldSlice]int
	slices  []field.FieldSlice
	byField map[field.FieldID][]int
	slice   *bitvec.SymMatrix
	fields  *bitvec.SymMatrix
	exempt  *bitvec.SymMatrix
}

// New returns an empty relation.
func New() *PackConflicts {
	pc := &PackConflicts{}
	pc.Reset()
	return pc
}

// Reset clears every conflict and forgets all slice ids.
func (pc *PackConflicts) Reset() {
	pc.ids = make(map[field.FieldSlice]int)
	pc.slices = nil
	pc.byField = make(map[field.FieldID][]int)
	pc.slice = bitvec.NewSymMatrix(0)
	pc.fields = bitvec.NewSymMatrix(0)
	pc.exempt = bitvec.NewSymMatrix(0)
}

// Register returns the matrix id of s, issuing the next id on first sight.
func (pc *PackConflicts) Register(s field.FieldSlice) int {
	if id, ok := pc.ids[s]; ok {
		return id
	}
	id := len(pc.slices)
	pc.ids[s] = id
	pc.slices = append(pc.slices, s)
	pc.byField[s.Field] = append(pc.byField[s.Field], id)
	return id
}

// ID returns the matrix id of a registered slice.
func (pc *PackConflicts) ID(s field.FieldSlice) (int, bool) {
	id, ok := pc.ids[s]
	return id, ok
}

// Slice returns the slice registered under id.
func (pc *PackConflicts) Slice(id int) field.FieldSlice {
	return pc.slices[id]
}

// NumSlices returns the number of registered slices.
func (pc *PackConflicts) NumSlices() int {
	return len(pc.slices)
}

// AddConflict forbids a and b from sharing a container. Slices of one
// field never conflict with each other.
func (pc *PackConflicts) AddConflict(a, b field.FieldSlice) bool {
	if a.Field == b.Field {
		return false
	}
	ia, ib := pc.Register(a), pc.Register(b)
	if pc.slice.Test(ia, ib) {
		return false
	}
	pc.slice.Set(ia, ib)
	return true
}

// AddFieldConflict forbids every slice of a from sharing a container with
// every slice of b.
func (pc *PackConflicts) AddFieldConflict(a, b field.FieldID) bool {
	if a == b || pc.fields.Test(int(a), int(b)) {
		return false
	}
	pc.fields.Set(int(a), int(b))
	return true
}

// Exempt records that a and b may be packed together despite digest rules.
func (pc *PackConflicts) Exempt(a, b field.FieldID) {
	if a != b {
		pc.exempt.Set(int(a), int(b))
	}
}

// IsExempt reports whether a digest exempted the pair.
func (pc *PackConflicts) IsExempt(a, b field.FieldID) bool {
	return a != b && pc.exempt.Test(int(a), int(b))
}

// HasPackConflict reports whether a and b must not share a container. A
// lookup tests every registered slice overlapping a against every
// registered slice overlapping b, so queries need not repeat the exact
// ranges used when the conflict was added.
func (pc *PackConflicts) HasPackConflict(a, b field.FieldSlice) bool {
	if a.Field == b.Field {
		return false
	}
	if pc.fields.Test(int(a.Field), int(b.Field)) {
		return true
	}
	for _, ia := range pc.byField[a.Field] {
		if !pc.slices[ia].Range.Overlaps(a.Range) {
			continue
		}
		for _, ib := range pc.byField[b.Field] {
			if pc.slices[ib].Range.Overlaps(b.Range) && pc.slice.Test(ia, ib) {
				return true
			}
		}
	}
	return false
}

// HasFieldConflict reports whether any slice of a conflicts with any slice of b.
func (pc *PackConflicts) HasFieldConflict(a, b *field.Field) bool {
	return pc.HasPackConflict(a.Whole(), b.Whole())
}

// FieldPairs calls fn for each field-level conflict with a < b.
func (pc *PackConflicts) FieldPairs(fn func(a, b field.FieldID)) {
	pc.fields.Pairs(func(i, j int) { fn(field.FieldID(i), field.FieldID(j)) })
}

// SlicePairs calls fn for each slice-level conflict in id order.
func (pc *PackConflicts) SlicePairs(fn func(a, b field.FieldSlice)) {
	pc.slice.Pairs(func(i, j int) { fn(pc.slices[i], pc.slices[j]) })
}

// Count returns the number of field-level plus slice-level conflicts.
func (pc *PackConflicts) Count() int {
	return pc.fields.Count() + pc.slice.Count()
}
