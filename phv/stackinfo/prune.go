package stackinfo

import (
	"strings"

	"github.com/joshuapare/phvkit/phv/ir"
)

// DeleteUnused drops entries whose stack is no longer declared or no longer
// referenced anywhere in p, for instance after dead-header elimination. It
// returns the names it removed.
func DeleteUnused(p *ir.Program) []string {
	info := p.StackInfo
	if info == nil {
		return nil
	}
	used := referencedStacks(p)
	var removed []string
	for _, e := range info.Entries() {
		h, declared := p.Header(e.Name)
		if declared && h.IsStack() && used[e.Name] {
			continue
		}
		info.Delete(e.Name)
		removed = append(removed, e.Name)
	}
	return removed
}

// stackOf maps "vlan[2].vid", "vlan[0]" or "vlan.$stkvalid" to "vlan".
func stackOf(ref string) string {
	if i := strings.IndexByte(ref, '['); i > 0 {
		return ref[:i]
	}
	if s, ok := strings.CutSuffix(ref, ".$stkvalid"); ok {
		return s
	}
	return ""
}

func referencedStacks(p *ir.Program) map[string]bool {
	used := make(map[string]bool)
	mark := func(ref string) {
		if s := stackOf(ref); s != "" {
			used[s] = true
		}
	}
	for i := range p.Parsers {
		for _, st := range p.Parsers[i].States {
			for _, x := range st.Extracts {
				mark(x)
			}
		}
	}
	for i := range p.Actions {
		for _, st := range p.Actions[i].Body {
			if sp, ok := st.(*ir.StackPrimitive); ok {
				used[sp.Stack] = true
			}
			for _, r := range ir.Touches(st) {
				mark(r.Field)
			}
		}
	}
	for i := range p.Tables {
		for _, k := range p.Tables[i].Keys {
			mark(k.Field)
		}
	}
	for i := range p.Deparsers {
		for _, em := range p.Deparsers[i].Emits {
			mark(em.Field)
		}
	}
	return used
}
