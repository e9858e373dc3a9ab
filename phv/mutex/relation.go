// Package mutex computes the field mutual-exclusion relation: which pairs
// of fields can never be live for the same packet and may therefore share
// container bits.
//
// The relation is seeded conservatively from parser extraction and then
// relaxed by independent passes, each of which only removes pairs. The one
// exception is the user pa_mutually_exclusive directive, which adds pairs
// unconditionally.
package mutex

import (
	"github.com/joshuapare/phvkit/internal/bitvec"
	"github.com/joshuapare/phvkit/phv/field"
)

// Relation is a symmetric, irreflexive relation over field ids.
type Relation struct {
	m *bitvec.SymMatrix
}

// NewRelation returns an empty relation sized for n fields.
func NewRelation(n int) *Relation {
	return &Relation{m: bitvec.NewSymMatrix(n)}
}

// IsFieldMutex reports whether a and b are mutually exclusive. A field is
// never mutex with itself.
func (r *Relation) IsFieldMutex(a, b field.FieldID) bool {
	if a == b || a < 0 || b < 0 {
		return false
	}
	return r.m.Test(int(a), int(b))
}

// AddFieldMutex marks a and b mutually exclusive.
func (r *Relation) AddFieldMutex(a, b field.FieldID) {
	if a == b || a < 0 || b < 0 {
		return
	}
	r.m.Set(int(a), int(b))
}

// RemoveFieldMutex clears the pair and reports whether it was set.
func (r *Relation) RemoveFieldMutex(a, b field.FieldID) bool {
	if !r.IsFieldMutex(a, b) {
		return false
	}
	r.m.Clear(int(a), int(b))
	return true
}

// Reset empties the relation.
func (r *Relation) Reset() {
	r.m.Reset()
}

// Count returns the number of mutex pairs.
func (r *Relation) Count() int {
	return r.m.Count()
}

// Clone returns an independent snapshot.
func (r *Relation) Clone() *Relation {
	return &Relation{m: r.m.Clone()}
}

// Mutexes returns the fields mutually exclusive with f, ascending.
func (r *Relation) Mutexes(f field.FieldID) []field.FieldID {
	row := r.m.Row(int(f))
	out := make([]field.FieldID, 0, row.Count())
	for _, b := range row.Bits() {
		out = append(out, field.FieldID(b))
	}
	return out
}

// Pairs calls fn for every mutex pair with a < b.
func (r *Relation) Pairs(fn func(a, b field.FieldID)) {
	r.m.Pairs(func(i, j int) { fn(field.FieldID(i), field.FieldID(j)) })
}

// SubsetOf reports whether every pair of r is also in o.
func (r *Relation) SubsetOf(o *Relation) bool {
	ok := true
	r.Pairs(func(a, b field.FieldID) {
		if !o.IsFieldMutex(a, b) {
			ok = false
		}
	})
	return ok
}
