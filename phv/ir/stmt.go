package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// Operand is a statement operand: a FieldRef or a Const. The set of
// implementations is closed.
type Operand interface {
	operand()
	String() string
}

// FieldRef names a field, optionally narrowed to a bit range.
type FieldRef struct {
	Field string
	Range *field.BitRange
}

// Const is an integer literal.
type Const struct {
	Value int64
}

func (FieldRef) operand() {}
func (Const) operand()    {}

func (r FieldRef) String() string {
	if r.Range == nil {
		return r.Field
	}
	return r.Field + r.Range.String()
}

func (c Const) String() string { return strconv.FormatInt(c.Value, 10) }

// ParseFieldRef parses "hdr.f" or "hdr.f[lo:hi]".
func ParseFieldRef(s string) (FieldRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FieldRef{}, fmt.Errorf("ir: empty field reference")
	}
	if !strings.HasSuffix(s, "]") {
		return FieldRef{Field: s}, nil
	}
	open := strings.LastIndexByte(s, '[')
	inner := s[open+1 : len(s)-1]
	lo, hi, ok := strings.Cut(inner, ":")
	if !ok {
		// stack element such as vlan[0]
		return FieldRef{Field: s}, nil
	}
	l, err := strconv.Atoi(lo)
	if err != nil {
		return FieldRef{}, fmt.Errorf("ir: bad slice in %q: %w", s, err)
	}
	h, err := strconv.Atoi(hi)
	if err != nil {
		return FieldRef{}, fmt.Errorf("ir: bad slice in %q: %w", s, err)
	}
	r := field.BitRange{Lo: l, Hi: h}
	if !r.Valid() {
		return FieldRef{}, fmt.Errorf("ir: empty slice in %q", s)
	}
	return FieldRef{Field: s[:open], Range: &r}, nil
}

// StackOp is a header-stack primitive.
type StackOp int

const (
	PushFront StackOp = iota
	PopFront
)

func (o StackOp) String() string {
	if o == PushFront {
		return "push_front"
	}
	return "pop_front"
}

// Stmt is one statement of an action body: Assign, Call or StackPrimitive.
// The set of implementations is closed.
type Stmt interface {
	stmt()
	Position() diag.Pos
}

// Assign writes Dst from Srcs.
type Assign struct {
	Dst  FieldRef
	Srcs []Operand
	At   diag.Pos
}

// Call is a method call whose arguments are all read.
type Call struct {
	Method string
	Args   []Operand
	At     diag.Pos
}

// StackPrimitive pushes or pops Amount elements of a header stack.
type StackPrimitive struct {
	Op     StackOp
	Stack  string
	Amount Operand
	At     diag.Pos
}

func (*Assign) stmt()         {}
func (*Call) stmt()           {}
func (*StackPrimitive) stmt() {}

func (s *Assign) Position() diag.Pos         { return s.At }
func (s *Call) Position() diag.Pos           { return s.At }
func (s *StackPrimitive) Position() diag.Pos { return s.At }

func fieldRefs(ops []Operand) []FieldRef {
	var out []FieldRef
	for _, op := range ops {
		switch o := op.(type) {
		case FieldRef:
			out = append(out, o)
		case Const:
		default:
			panic(fmt.Sprintf("ir: unhandled operand %T", op))
		}
	}
	return out
}

// Reads returns the fields a statement reads.
func Reads(s Stmt) []FieldRef {
	switch st := s.(type) {
	case *Assign:
		return fieldRefs(st.Srcs)
	case *Call:
		return fieldRefs(st.Args)
	case *StackPrimitive:
		return fieldRefs([]Operand{st.Amount})
	default:
		panic(fmt.Sprintf("ir: unhandled statement %T", s))
	}
}

// Writes returns the fields a statement writes. A stack primitive writes
// the stack's validity word.
func Writes(s Stmt) []FieldRef {
	switch st := s.(type) {
	case *Assign:
		return []FieldRef{st.Dst}
	case *Call:
		return nil
	case *StackPrimitive:
		return []FieldRef{{Field: StackValidFieldName(st.Stack)}}
	default:
		panic(fmt.Sprintf("ir: unhandled statement %T", s))
	}
}

// Touches returns reads followed by writes.
func Touches(s Stmt) []FieldRef {
	return append(Reads(s), Writes(s)...)
}
