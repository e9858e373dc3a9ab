// Package ir is the program representation the PHV analyses read: header
// declarations, parser state graphs, match-action tables with their action
// bodies, and the deparser with its emits, checksums and digests.
//
// Only the syntactic forms the analyses inspect are modelled. Statements and
// operands are closed sum types; see Stmt and Operand.
package ir

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/pkg/diag"
)

var (
	// ErrUnknownAction indicates a table names an action that is not declared.
	ErrUnknownAction = errors.New("ir: unknown action")

	// ErrUnknownState indicates a parser transition to an undeclared state.
	ErrUnknownState = errors.New("ir: unknown parser state")

	// ErrDuplicate indicates two declarations share a name.
	ErrDuplicate = errors.New("ir: duplicate declaration")
)

// Gress is re-exported from the field package.
type Gress = field.Gress

// FieldDecl is one field of a header type.
type FieldDecl struct {
	Name  string `yaml:"name"`
	Width int    `yaml:"width"`
}

// HeaderDecl declares a header (or metadata struct) instance. A non-zero
// Stack makes it a header stack with instances name[0] .. name[Stack-1].
type HeaderDecl struct {
	Name     string      `yaml:"name"`
	Gress    string      `yaml:"gress"`
	Fields   []FieldDecl `yaml:"fields"`
	Metadata bool        `yaml:"metadata"`
	Bridged  bool        `yaml:"bridged"`
	Stack    int         `yaml:"stack"`
	At       diag.Pos    `yaml:"-"`
}

// IsStack reports whether the declaration is a header stack.
func (h *HeaderDecl) IsStack() bool { return h.Stack > 0 }

// Instances returns the header instance names the declaration introduces.
func (h *HeaderDecl) Instances() []string {
	if !h.IsStack() {
		return []string{h.Name}
	}
	out := make([]string, h.Stack)
	for i := range out {
		out[i] = h.Name + "[" + strconv.Itoa(i) + "]"
	}
	return out
}

// FieldName joins an instance and a field name.
func FieldName(instance, f string) string { return instance + "." + f }

// ValidFieldName is the point-of-validity bit of a header instance.
func ValidFieldName(instance string) string { return instance + ".$valid" }

// StackValidFieldName is the lowered validity word of a header stack.
func StackValidFieldName(stack string) string { return stack + ".$stkvalid" }

// ParserState is one state of a parser graph.
type ParserState struct {
	Name     string   `yaml:"name"`
	Extracts []string `yaml:"extract"`
	Next     []string `yaml:"next"`
	At       diag.Pos `yaml:"-"`
}

// Parser is the state graph for one gress.
type Parser struct {
	Name   string        `yaml:"name"`
	Gress  string        `yaml:"gress"`
	Start  string        `yaml:"start"`
	States []ParserState `yaml:"states"`
}

// State returns the named state.
func (p *Parser) State(name string) (*ParserState, bool) {
	for i := range p.States {
		if p.States[i].Name == name {
			return &p.States[i], true
		}
	}
	return nil, false
}

// Table is a match-action table.
type Table struct {
	Name    string     `yaml:"name"`
	Gress   string     `yaml:"gress"`
	Keys    []FieldRef `yaml:"-"`
	Actions []string   `yaml:"actions"`

	// StagePin is a user stage directive; nil when absent.
	StagePin *int `yaml:"stage"`

	// IsInit marks synthetic tables that only initialise fields.
	IsInit bool     `yaml:"init"`
	At     diag.Pos `yaml:"-"`
}

// Action is a named action body.
type Action struct {
	Name string   `yaml:"name"`
	Body []Stmt   `yaml:"-"`
	At   diag.Pos `yaml:"-"`
}

// Emit is one deparser emission guarded by a POV bit.
type Emit struct {
	Field string `yaml:"field"`
	POV   string `yaml:"pov"`
}

// Checksum is a deparser-computed checksum.
type Checksum struct {
	Dest    string   `yaml:"dest"`
	Sources []string `yaml:"sources"`
	At      diag.Pos `yaml:"-"`
}

// DigestKind names the out-of-band mechanism a digest uses.
type DigestKind string

const (
	DigestLearning  DigestKind = "learning"
	DigestMirror    DigestKind = "mirror"
	DigestResubmit  DigestKind = "resubmit"
	DigestPktgen    DigestKind = "pktgen"
	DigestBridgeHdr DigestKind = "bridge"
)

// Digest is a set of field lists reported through one mechanism.
type Digest struct {
	Name       string     `yaml:"name"`
	Kind       DigestKind `yaml:"kind"`
	FieldLists [][]string `yaml:"field_lists"`
}

// Deparser emits headers for one gress.
type Deparser struct {
	Gress     string     `yaml:"gress"`
	Emits     []Emit     `yaml:"emits"`
	Checksums []Checksum `yaml:"checksums"`
	Digests   []Digest   `yaml:"digests"`
}

// FieldPair is an unordered pair of field names from a directive.
type FieldPair struct {
	A, B string
	At   diag.Pos
}

// Pragmas are user directives already parsed upstream.
type Pragmas struct {
	MutuallyExclusive []FieldPair
	NoPack            []FieldPair
	Alias             []FieldPair // A is the metadata alias of header field B
	Solitary          []string
	NoSplit           []string
}

// LoweredStack is the already-lowered validity word of a header stack.
// Bits [0, ValidLo) are the push overlay, [ValidLo, ValidHi] the valid
// bits, and (ValidHi, Width) the pop overlay.
type LoweredStack struct {
	Stack   string `yaml:"stack"`
	Width   int    `yaml:"width"`
	ValidLo int    `yaml:"valid_lo"`
	ValidHi int    `yaml:"valid_hi"`
}

// Stages carries the externally computed placement facts.
type Stages struct {
	MinStage     map[string]int `yaml:"min_stage"`
	SameStage    [][2]string    `yaml:"same_stage"`
	MutexTables  [][2]string    `yaml:"mutex_tables"`
	MutexActions [][2]string    `yaml:"mutex_actions"`
}

// Program is the whole-pipe representation.
type Program struct {
	Headers       []HeaderDecl
	Parsers       []Parser
	Tables        []Table
	Actions       []Action
	Deparsers     []Deparser
	Pragmas       Pragmas
	LoweredStacks []LoweredStack
	Stages        Stages

	// StackInfo is attached by the header-stack collector.
	StackInfo *HeaderStackInfo

	actions map[string]*Action
	tables  map[string]*Table
	headers map[string]*HeaderDecl
}

// Index rebuilds name lookups and checks cross references.
func (p *Program) Index() error {
	p.actions = make(map[string]*Action, len(p.Actions))
	p.tables = make(map[string]*Table, len(p.Tables))
	p.headers = make(map[string]*HeaderDecl, len(p.Headers))
	for i := range p.Actions {
		a := &p.Actions[i]
		if _, dup := p.actions[a.Name]; dup {
			return fmt.Errorf("%w: action %s", ErrDuplicate, a.Name)
		}
		p.actions[a.Name] = a
	}
	for i := range p.Headers {
		h := &p.Headers[i]
		if _, dup := p.headers[h.Name]; dup {
			return fmt.Errorf("%w: header %s", ErrDuplicate, h.Name)
		}
		p.headers[h.Name] = h
	}
	for i := range p.Tables {
		t := &p.Tables[i]
		if _, dup := p.tables[t.Name]; dup {
			return fmt.Errorf("%w: table %s", ErrDuplicate, t.Name)
		}
		for _, a := range t.Actions {
			if _, ok := p.actions[a]; !ok {
				return fmt.Errorf("%w: %s in table %s", ErrUnknownAction, a, t.Name)
			}
		}
		p.tables[t.Name] = t
	}
	for i := range p.Parsers {
		ps := &p.Parsers[i]
		for _, st := range ps.States {
			for _, n := range st.Next {
				if _, ok := ps.State(n); !ok {
					return fmt.Errorf("%w: %s -> %s in parser %s", ErrUnknownState, st.Name, n, ps.Name)
				}
			}
		}
	}
	return nil
}

// Action returns the named action.
func (p *Program) Action(name string) (*Action, bool) {
	a, ok := p.actions[name]
	return a, ok
}

// Table returns the named table.
func (p *Program) Table(name string) (*Table, bool) {
	t, ok := p.tables[name]
	return t, ok
}

// Header returns the named header declaration.
func (p *Program) Header(name string) (*HeaderDecl, bool) {
	h, ok := p.headers[name]
	return h, ok
}

// TableWrites returns, per action of t, the field references the action writes.
func (p *Program) TableWrites(t *Table) map[string][]FieldRef {
	out := make(map[string][]FieldRef, len(t.Actions))
	for _, name := range t.Actions {
		a, ok := p.actions[name]
		if !ok {
			continue
		}
		var w []FieldRef
		for _, s := range a.Body {
			w = append(w, Writes(s)...)
		}
		out[name] = w
	}
	return out
}
