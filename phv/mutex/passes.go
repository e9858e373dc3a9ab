package mutex

import (
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// headerFields maps a header instance to its non-POV fields.
func headerFields(db *field.Database) map[string][]field.FieldID {
	out := make(map[string][]field.FieldID)
	for _, f := range db.All() {
		if f.Header == "" || f.IsPOV() {
			continue
		}
		out[f.Header] = append(out[f.Header], f.ID)
	}
	return out
}

// extraction records, for one parser, the states that extract each field.
type extraction struct {
	parser *ir.Parser
	reach  *Reachability
	states map[field.FieldID][]int
	order  []field.FieldID
}

func collectExtractions(p *ir.Program, db *field.Database) ([]*extraction, error) {
	byHeader := headerFields(db)
	var out []*extraction
	for i := range p.Parsers {
		ps := &p.Parsers[i]
		ex := &extraction{parser: ps, reach: NewReachability(ps), states: make(map[field.FieldID][]int)}
		for _, st := range ps.States {
			si, ok := ex.reach.State(st.Name)
			if !ok {
				return nil, diag.Bugf("no reachability entry for state %s of parser %s", st.Name, ps.Name)
			}
			for _, hdr := range st.Extracts {
				ids, ok := byHeader[hdr]
				if !ok {
					return nil, diag.Fatalf(st.At, "parser state %s extracts unknown header %s", st.Name, hdr)
				}
				for _, id := range ids {
					if _, seen := ex.states[id]; !seen {
						ex.order = append(ex.order, id)
					}
					ex.states[id] = append(ex.states[id], si)
				}
			}
		}
		out = append(out, ex)
	}
	return out, nil
}

// Seed resets rel and marks every pair of distinct fields extracted by
// parsers of the same gress as mutually exclusive. Fields that are never
// extracted (metadata, computed values) start out not mutex.
func Seed(p *ir.Program, db *field.Database, rel *Relation) error {
	rel.Reset()
	exs, err := collectExtractions(p, db)
	if err != nil {
		return err
	}
	var byGress [field.NumGress][]field.FieldID
	for _, ex := range exs {
		g, err := field.ParseGress(ex.parser.Gress)
		if err != nil {
			return diag.Fatalf(diag.Pos{}, "parser %s: %v", ex.parser.Name, err)
		}
		byGress[g] = append(byGress[g], ex.order...)
	}
	for _, ids := range byGress {
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				rel.AddFieldMutex(a, b)
			}
		}
	}
	return nil
}

// RelaxParser removes the mutex between two fields whenever a state
// extracting one can reach, or be reached from, a state extracting the
// other in the same parser. Both then belong to one parse of a packet.
func RelaxParser(p *ir.Program, db *field.Database, rel *Relation) (int, error) {
	exs, err := collectExtractions(p, db)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, ex := range exs {
		for i, a := range ex.order {
			for _, b := range ex.order[i+1:] {
				if !rel.IsFieldMutex(a, b) {
					continue
				}
				if ex.coReachable(a, b) && rel.RemoveFieldMutex(a, b) {
					removed++
				}
			}
		}
	}
	return removed, nil
}

func (ex *extraction) coReachable(a, b field.FieldID) bool {
	for _, sa := range ex.states[a] {
		for _, sb := range ex.states[b] {
			if ex.reach.Related(sa, sb) {
				return true
			}
		}
	}
	return false
}

func resolve(db *field.Database, ref ir.FieldRef, pos diag.Pos) (field.FieldID, error) {
	f, ok := db.Lookup(ref.Field)
	if !ok {
		return field.NoField, diag.Fatalf(pos, "reference to undeclared field %s", ref.Field)
	}
	return f.ID, nil
}

func relaxAll(rel *Relation, ids []field.FieldID) int {
	removed := 0
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			if rel.RemoveFieldMutex(a, b) {
				removed++
			}
		}
	}
	return removed
}

// RelaxMAU removes mutex between fields matched together by one table and
// between fields touched together by one action body.
func RelaxMAU(p *ir.Program, db *field.Database, rel *Relation) (int, error) {
	removed := 0
	for i := range p.Tables {
		t := &p.Tables[i]
		ids := make([]field.FieldID, 0, len(t.Keys))
		for _, k := range t.Keys {
			id, err := resolve(db, k, t.At)
			if err != nil {
				return removed, err
			}
			ids = append(ids, id)
		}
		removed += relaxAll(rel, ids)
	}
	for i := range p.Actions {
		a := &p.Actions[i]
		var ids []field.FieldID
		for _, st := range a.Body {
			for _, ref := range ir.Touches(st) {
				id, err := resolve(db, ref, st.Position())
				if err != nil {
					return removed, err
				}
				ids = append(ids, id)
			}
		}
		removed += relaxAll(rel, ids)
	}
	return removed, nil
}

// mauWritten returns the fields written by any action.
func mauWritten(p *ir.Program, db *field.Database) map[field.FieldID]bool {
	out := make(map[field.FieldID]bool)
	for i := range p.Actions {
		for _, st := range p.Actions[i].Body {
			for _, ref := range ir.Writes(st) {
				if f, ok := db.Lookup(ref.Field); ok {
					out[f.ID] = true
				}
			}
		}
	}
	return out
}

// RelaxDeparser handles checksum and POV-driven emission.
//
// A checksum is live when its destination is not already mutex with one of
// its sources, or when a source is computed in the MAU without being
// emitted; its sources (and destination) are then read together by the
// checksum unit and lose their mutex. Fields emitted under one POV bit lose
// their mutex with each other and with that bit.
func RelaxDeparser(p *ir.Program, db *field.Database, rel *Relation) (int, error) {
	written := mauWritten(p, db)
	removed := 0
	for i := range p.Deparsers {
		dp := &p.Deparsers[i]
		emitted := make(map[field.FieldID]bool)
		groups := make(map[field.FieldID][]field.FieldID)
		var povOrder []field.FieldID
		for _, em := range dp.Emits {
			fid, err := resolve(db, ir.FieldRef{Field: em.Field}, diag.Pos{})
			if err != nil {
				return removed, err
			}
			pid, err := resolve(db, ir.FieldRef{Field: em.POV}, diag.Pos{})
			if err != nil {
				return removed, err
			}
			emitted[fid] = true
			if _, ok := groups[pid]; !ok {
				povOrder = append(povOrder, pid)
				groups[pid] = []field.FieldID{pid}
			}
			groups[pid] = append(groups[pid], fid)
		}
		for _, pid := range povOrder {
			removed += relaxAll(rel, groups[pid])
		}

		for _, cs := range dp.Checksums {
			dest, err := resolve(db, ir.FieldRef{Field: cs.Dest}, cs.At)
			if err != nil {
				return removed, err
			}
			ids := make([]field.FieldID, 0, len(cs.Sources)+1)
			live := false
			for _, s := range cs.Sources {
				sid, err := resolve(db, ir.FieldRef{Field: s}, cs.At)
				if err != nil {
					return removed, err
				}
				if sid != dest && !rel.IsFieldMutex(dest, sid) {
					live = true
				}
				if written[sid] && !emitted[sid] {
					live = true
				}
				ids = append(ids, sid)
			}
			if !live {
				continue
			}
			removed += relaxAll(rel, append(ids, dest))
		}
	}
	return removed, nil
}

// ApplyPragmas adds mutex for every pa_mutually_exclusive pair. This is the
// only rule that adds pairs after seeding.
func ApplyPragmas(p *ir.Program, db *field.Database, rel *Relation, report *diag.Report) int {
	added := 0
	for _, pr := range p.Pragmas.MutuallyExclusive {
		a, okA := db.Lookup(pr.A)
		b, okB := db.Lookup(pr.B)
		if !okA || !okB {
			report.Warnf("pa_mutually_exclusive", pr.At, "ignoring directive on unknown field (%s, %s)", pr.A, pr.B)
			continue
		}
		if a.ID == b.ID {
			report.Warnf("pa_mutually_exclusive", pr.At, "field %s cannot be exclusive with itself", pr.A)
			continue
		}
		if rel.IsFieldMutex(a.ID, b.ID) {
			report.Warnf("pa_mutually_exclusive", pr.At, "%s and %s are already mutually exclusive", pr.A, pr.B)
			continue
		}
		rel.AddFieldMutex(a.ID, b.ID)
		added++
	}
	return added
}

// MarkAliases flags both sides of every alias directive as never
// overlayable. The mutex relation itself is left untouched.
func MarkAliases(p *ir.Program, db *field.Database, report *diag.Report) int {
	marked := 0
	for _, pr := range p.Pragmas.Alias {
		for _, name := range []string{pr.A, pr.B} {
			f, ok := db.Lookup(name)
			if !ok {
				report.Warnf("pa_alias", pr.At, "ignoring alias of unknown field %s", name)
				continue
			}
			if !f.Has(field.FlagNeverOverlay) {
				f.Flags |= field.FlagNeverOverlay
				marked++
			}
		}
	}
	return marked
}
