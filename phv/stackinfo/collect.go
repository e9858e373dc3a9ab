// Package stackinfo collects header-stack geometry: per stack declaration,
// its size, the deepest push_front and pop_front amounts, and whether the
// stack is visible in each thread. The result sizes the stack validity word
// ($stkvalid) and its push/pop overlay windows.
package stackinfo

import (
	"strings"

	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/pkg/diag"
)

const (
	ingressPrefix = "ingress::"
	egressPrefix  = "egress::"
)

// Collect builds a fresh HeaderStackInfo for p and attaches it to the
// program. Lowered stack validity words, when present, override the
// amounts observed on push/pop primitives.
func Collect(p *ir.Program) (*ir.HeaderStackInfo, error) {
	info := ir.NewHeaderStackInfo()
	for i := range p.Headers {
		h := &p.Headers[i]
		if !h.IsStack() {
			continue
		}
		info.Add(newEntry(h))
	}

	for i := range p.Actions {
		for _, st := range p.Actions[i].Body {
			sp, ok := st.(*ir.StackPrimitive)
			if !ok {
				continue
			}
			if err := observe(info, sp); err != nil {
				return nil, err
			}
		}
	}

	for _, ls := range p.LoweredStacks {
		if err := applyLowered(info, ls); err != nil {
			return nil, err
		}
	}

	p.StackInfo = info
	return info, nil
}

func newEntry(h *ir.HeaderDecl) *ir.StackEntry {
	e := &ir.StackEntry{Name: h.Name, Size: h.Stack}
	e.InThread[field.Ingress] = true
	e.InThread[field.Egress] = true
	switch {
	case strings.HasPrefix(h.Name, ingressPrefix):
		e.InThread[field.Egress] = false
	case strings.HasPrefix(h.Name, egressPrefix):
		e.InThread[field.Ingress] = false
	}
	return e
}

func observe(info *ir.HeaderStackInfo, sp *ir.StackPrimitive) error {
	e, ok := info.Get(sp.Stack)
	if !ok {
		return diag.Fatalf(sp.At, "%s on %s, which is not a header stack", sp.Op, sp.Stack)
	}
	c, ok := sp.Amount.(ir.Const)
	if !ok {
		return diag.Fatalf(sp.At, "%s amount %s on %s must be a constant", sp.Op, sp.Amount, sp.Stack)
	}
	if c.Value <= 0 {
		return diag.Fatalf(sp.At, "%s amount %d on %s must be positive", sp.Op, c.Value, sp.Stack)
	}
	n := int(c.Value)
	switch sp.Op {
	case ir.PushFront:
		e.MaxPush = max(e.MaxPush, n)
	case ir.PopFront:
		e.MaxPop = max(e.MaxPop, n)
	}
	return nil
}

// applyLowered derives maxpush/maxpop from the bit split of the validity word.
func applyLowered(info *ir.HeaderStackInfo, ls ir.LoweredStack) error {
	e, ok := info.Get(ls.Stack)
	if !ok {
		return diag.Fatalf(diag.Pos{}, "lowered validity word for %s has no stack declaration", ls.Stack)
	}
	valid := field.BitRange{Lo: ls.ValidLo, Hi: ls.ValidHi}
	if !valid.Valid() || ls.ValidHi >= ls.Width {
		return diag.Fatalf(diag.Pos{}, "lowered validity word for %s: bad split %d..%d of %d bits",
			ls.Stack, ls.ValidLo, ls.ValidHi, ls.Width)
	}
	if valid.Size() != e.Size {
		return diag.Fatalf(diag.Pos{}, "lowered validity word for %s holds %d element bits, stack has %d",
			ls.Stack, valid.Size(), e.Size)
	}
	e.MaxPush = ls.ValidLo
	e.MaxPop = ls.Width - ls.ValidHi - 1
	return nil
}
