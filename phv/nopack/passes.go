package nopack

import (
	"log/slog"

	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// DeparserRule is the deparser's own no-pack verdict for two fields.
type DeparserRule func(a, b *field.Field) bool

// DefaultDeparserRule forbids deparsed fields from sharing a container with
// fields that are not deparsed, since the deparser emits whole containers,
// and keeps solitary fields alone.
func DefaultDeparserRule(a, b *field.Field) bool {
	if a.Gress != b.Gress {
		return false
	}
	if a.Has(field.FlagSolitary) || b.Has(field.FlagSolitary) {
		return true
	}
	return a.IsDeparsed() != b.IsDeparsed()
}

// StageOracle answers placement questions about tables.
type StageOracle interface {
	// SameStage reports whether the two tables may execute in one stage.
	SameStage(t1, t2 string) bool

	// MinStage returns the estimated minimum stage of a table.
	MinStage(t string) (int, bool)
}

// Exclusivity answers whether two tables or two actions never apply to the
// same packet.
type Exclusivity interface {
	TablesMutex(t1, t2 string) bool
	ActionsMutex(a1, a2 string) bool
}

// SeedDeparser resets pc and copies the deparser verdict for every pair of
// distinct fields.
func SeedDeparser(db *field.Database, pc *PackConflicts, rule DeparserRule) int {
	pc.Reset()
	if rule == nil {
		return 0
	}
	added := 0
	all := db.All()
	for i, a := range all {
		for _, b := range all[i+1:] {
			if rule(a, b) && pc.AddFieldConflict(a.ID, b.ID) {
				added++
			}
		}
	}
	return added
}

// ApplyPragmas adds every pa_no_pack pair unconditionally.
func ApplyPragmas(p *ir.Program, db *field.Database, pc *PackConflicts, report *diag.Report) int {
	added := 0
	for _, pr := range p.Pragmas.NoPack {
		a, okA := db.Lookup(pr.A)
		b, okB := db.Lookup(pr.B)
		if !okA || !okB {
			report.Warnf("pa_no_pack", pr.At, "ignoring directive on unknown field (%s, %s)", pr.A, pr.B)
			continue
		}
		for _, f := range []*field.Field{a, b} {
			if f.IsPOV() {
				report.Warnf("pa_no_pack", pr.At, "%s is a validity bit; pa_no_pack has no effect on its allocation", f.Name)
			}
		}
		if pc.AddFieldConflict(a.ID, b.ID) {
			added++
		}
	}
	return added
}

// digestKinds are the mechanisms whose field lists are read jointly by
// the hardware.
var digestKinds = map[ir.DigestKind]bool{
	ir.DigestLearning:  true,
	ir.DigestMirror:    true,
	ir.DigestResubmit:  true,
	ir.DigestPktgen:    true,
	ir.DigestBridgeHdr: false,
}

// ApplyDigests exempts fields of one digest field list from each other and
// makes every metadata field of a digest conflict with all fields outside
// the digest's lists. From the second hardware generation on, plain
// (unbridged) metadata digest fields are skipped.
func ApplyDigests(p *ir.Program, db *field.Database, pc *PackConflicts, target Target, log *slog.Logger) int {
	type digestSet struct {
		name   string
		listed map[field.FieldID]bool
		fields []*field.Field
	}
	var sets []digestSet
	for i := range p.Deparsers {
		for _, dg := range p.Deparsers[i].Digests {
			if !digestKinds[dg.Kind] {
				continue
			}
			ds := digestSet{name: dg.Name, listed: make(map[field.FieldID]bool)}
			for _, fl := range dg.FieldLists {
				var ids []field.FieldID
				for _, name := range fl {
					f, ok := db.Lookup(name)
					if !ok {
						continue
					}
					ids = append(ids, f.ID)
					if !ds.listed[f.ID] {
						ds.listed[f.ID] = true
						if f.IsMetadata() {
							ds.fields = append(ds.fields, f)
						}
					}
				}
				for x, a := range ids {
					for _, b := range ids[x+1:] {
						pc.Exempt(a, b)
					}
				}
			}
			sets = append(sets, ds)
		}
	}

	added := 0
	for _, ds := range sets {
		for _, f := range ds.fields {
			if target.Gen() >= 2 && !f.IsBridged() {
				log.Debug("digest field skipped on this target", "digest", ds.name, "field", f.Name, "target", target)
				continue
			}
			for _, g := range db.All() {
				if ds.listed[g.ID] || g.IsPOV() || g.Gress != f.Gress {
					continue
				}
				if pc.IsExempt(f.ID, g.ID) {
					continue
				}
				if pc.AddFieldConflict(f.ID, g.ID) {
					added++
				}
			}
		}
		log.Debug("digest conflicts", "digest", ds.name, "fields", len(ds.fields))
	}
	return added
}

func resolveSlice(db *field.Database, ref ir.FieldRef, pos diag.Pos) (field.FieldSlice, *field.Field, error) {
	f, ok := db.Lookup(ref.Field)
	if !ok {
		return field.FieldSlice{}, nil, diag.Fatalf(pos, "write to undeclared field %s", ref.Field)
	}
	if ref.Range == nil {
		return f.Whole(), f, nil
	}
	s, err := f.Slice(*ref.Range)
	if err != nil {
		return field.FieldSlice{}, nil, diag.Fatalf(pos, "%v", err)
	}
	return s, f, nil
}

type written struct {
	slice field.FieldSlice
	f     *field.Field
}

// unionWrites returns the slices written by the actions of t1 and t2 that
// have at least one non-exclusive partner in the other table.
func unionWrites(p *ir.Program, db *field.Database, t1, t2 *ir.Table, ex Exclusivity) ([]written, []written, error) {
	used1 := make(map[string]bool)
	used2 := make(map[string]bool)
	for _, a1 := range t1.Actions {
		for _, a2 := range t2.Actions {
			if ex != nil && ex.ActionsMutex(a1, a2) {
				continue
			}
			used1[a1] = true
			used2[a2] = true
		}
	}
	collect := func(t *ir.Table, used map[string]bool) ([]written, error) {
		var out []written
		seen := make(map[field.FieldSlice]bool)
		for _, name := range t.Actions {
			if !used[name] {
				continue
			}
			a, ok := p.Action(name)
			if !ok {
				return nil, diag.Bugf("table %s names unindexed action %s", t.Name, name)
			}
			for _, st := range a.Body {
				for _, ref := range ir.Writes(st) {
					s, f, err := resolveSlice(db, ref, st.Position())
					if err != nil {
						return nil, err
					}
					if !seen[s] {
						seen[s] = true
						out = append(out, written{slice: s, f: f})
					}
				}
			}
		}
		return out, nil
	}
	w1, err := collect(t1, used1)
	if err != nil {
		return nil, nil, err
	}
	w2, err := collect(t2, used2)
	if err != nil {
		return nil, nil, err
	}
	return w1, w2, nil
}

func pinnedTogether(t1, t2 *ir.Table) bool {
	return t1.StagePin != nil && t2.StagePin != nil && *t1.StagePin >= 0 && *t1.StagePin == *t2.StagePin
}

func sameStageExact(st StageOracle, t1, t2 *ir.Table) bool {
	return (st != nil && st.SameStage(t1.Name, t2.Name)) || pinnedTogether(t1, t2)
}

func sameStageEstimate(st StageOracle, t1, t2 *ir.Table) bool {
	if st == nil || t1.IsInit || t2.IsInit {
		return false
	}
	s1, ok1 := st.MinStage(t1.Name)
	s2, ok2 := st.MinStage(t2.Name)
	return ok1 && ok2 && s1 == s2
}

// tablePairs calls fn for every pair of distinct same-gress tables that
// are not exclusive and pass the accept filter.
func tablePairs(p *ir.Program, ex Exclusivity, accept func(t1, t2 *ir.Table) bool, fn func(t1, t2 *ir.Table) error) error {
	for i := range p.Tables {
		t1 := &p.Tables[i]
		for j := i + 1; j < len(p.Tables); j++ {
			t2 := &p.Tables[j]
			if t1.Gress != t2.Gress || !accept(t1, t2) {
				continue
			}
			if ex != nil && ex.TablesMutex(t1.Name, t2.Name) {
				continue
			}
			if err := fn(t1, t2); err != nil {
				return err
			}
		}
	}
	return nil
}

func crossConflicts(pc *PackConflicts, db *field.Database, t1, t2 *ir.Table, w1, w2 []written,
	keep func(a, b *field.Field) bool, log *slog.Logger,
) int {
	added := 0
	for _, a := range w1 {
		for _, b := range w2 {
			if a.slice.Overlaps(b.slice) {
				log.Warn("ambiguous write dependency between co-resident tables",
					"t1", t1.Name, "t2", t2.Name, "slice1", db.SliceString(a.slice), "slice2", db.SliceString(b.slice))
				continue
			}
			if keep != nil && !keep(a.f, b.f) {
				continue
			}
			if pc.AddConflict(a.slice, b.slice) {
				added++
			}
		}
	}
	return added
}

// ApplyTablePairs makes the slices written by two tables that may share a
// stage conflict pairwise. Tables share a stage when the oracle says so or
// when both carry the same non-negative stage pin.
func ApplyTablePairs(p *ir.Program, db *field.Database, pc *PackConflicts, st StageOracle, ex Exclusivity, log *slog.Logger) (int, error) {
	added := 0
	err := tablePairs(p, ex,
		func(t1, t2 *ir.Table) bool { return sameStageExact(st, t1, t2) },
		func(t1, t2 *ir.Table) error {
			w1, w2, err := unionWrites(p, db, t1, t2, ex)
			if err != nil {
				return err
			}
			n := crossConflicts(pc, db, t1, t2, w1, w2, nil, log)
			if n > 0 {
				log.Debug("table pair conflicts", "t1", t1.Name, "t2", t2.Name, "added", n)
			}
			added += n
			return nil
		})
	return added, err
}

// ApplyBridgedPairs covers tables whose minimum stage estimates coincide
// while the exact oracle keeps them apart. Only cross pairs with a bridged
// or digest field on at least one side conflict. Field initialisation
// tables are never considered.
func ApplyBridgedPairs(p *ir.Program, db *field.Database, pc *PackConflicts, st StageOracle, ex Exclusivity, log *slog.Logger) (int, error) {
	carries := func(f *field.Field) bool { return f.IsBridged() || f.IsDigest() }
	added := 0
	err := tablePairs(p, ex,
		func(t1, t2 *ir.Table) bool { return !sameStageExact(st, t1, t2) && sameStageEstimate(st, t1, t2) },
		func(t1, t2 *ir.Table) error {
			w1, w2, err := unionWrites(p, db, t1, t2, ex)
			if err != nil {
				return err
			}
			n := crossConflicts(pc, db, t1, t2, w1, w2,
				func(a, b *field.Field) bool { return carries(a) || carries(b) }, log)
			if n > 0 {
				log.Debug("bridged pair conflicts", "t1", t1.Name, "t2", t2.Name, "added", n)
			}
			added += n
			return nil
		})
	return added, err
}
