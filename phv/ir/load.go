package ir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/phvkit/internal/input"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// ErrBadStatement indicates an action body entry the loader cannot decode.
var ErrBadStatement = errors.New("ir: malformed statement")

// document is the on-disk YAML layout of a program.
type document struct {
	Headers       []HeaderDecl   `yaml:"headers"`
	Parsers       []Parser       `yaml:"parsers"`
	Tables        []Table        `yaml:"tables"`
	Actions       []Action       `yaml:"actions"`
	Deparsers     []Deparser     `yaml:"deparsers"`
	Pragmas       Pragmas        `yaml:"pragmas"`
	LoweredStacks []LoweredStack `yaml:"lowered_stacks"`
	Stages        Stages         `yaml:"stages"`
}

// Load decodes a YAML program and indexes it.
func Load(r io.Reader) (*Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ir: decode program: %w", err)
	}
	p := &Program{
		Headers:       doc.Headers,
		Parsers:       doc.Parsers,
		Tables:        doc.Tables,
		Actions:       doc.Actions,
		Deparsers:     doc.Deparsers,
		Pragmas:       doc.Pragmas,
		LoweredStacks: doc.LoweredStacks,
		Stages:        doc.Stages,
	}
	if err := p.Index(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadBytes decodes a program held in memory.
func LoadBytes(data []byte) (*Program, error) {
	return Load(bytes.NewReader(data))
}

// LoadFile reads a program from disk. Compressed (zstd, lz4) and
// non-UTF-8 files are accepted.
func LoadFile(path string) (*Program, error) {
	data, err := input.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ir: %w", err)
	}
	return LoadBytes(data)
}

func posOf(n *yaml.Node) diag.Pos {
	return diag.Pos{Line: n.Line, Column: n.Column}
}

func (h *HeaderDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain HeaderDecl
	if err := checkKeys(n, (*plain)(h)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(h)); err != nil {
		return err
	}
	h.At = posOf(n)
	return nil
}

func (s *ParserState) UnmarshalYAML(n *yaml.Node) error {
	type plain ParserState
	if err := checkKeys(n, (*plain)(s)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(s)); err != nil {
		return err
	}
	s.At = posOf(n)
	return nil
}

func (c *Checksum) UnmarshalYAML(n *yaml.Node) error {
	type plain Checksum
	if err := checkKeys(n, (*plain)(c)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(c)); err != nil {
		return err
	}
	c.At = posOf(n)
	return nil
}

func (t *Table) UnmarshalYAML(n *yaml.Node) error {
	type plain Table
	var doc struct {
		plain `yaml:",inline"`
		Keys  []string `yaml:"keys"`
	}
	if err := checkKeys(n, &doc); err != nil {
		return err
	}
	if err := n.Decode(&doc); err != nil {
		return err
	}
	*t = Table(doc.plain)
	for _, k := range doc.Keys {
		ref, err := ParseFieldRef(k)
		if err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		t.Keys = append(t.Keys, ref)
	}
	t.At = posOf(n)
	return nil
}

func (a *Action) UnmarshalYAML(n *yaml.Node) error {
	var doc struct {
		Name string      `yaml:"name"`
		Body []yaml.Node `yaml:"body"`
	}
	if err := checkKeys(n, &doc); err != nil {
		return err
	}
	if err := n.Decode(&doc); err != nil {
		return err
	}
	a.Name = doc.Name
	a.At = posOf(n)
	a.Body = nil
	for i := range doc.Body {
		st, err := decodeStmt(&doc.Body[i])
		if err != nil {
			return fmt.Errorf("action %s: %w", a.Name, err)
		}
		a.Body = append(a.Body, st)
	}
	return nil
}

// decodeStmt reads a single-key mapping such as {assign: {...}}.
func decodeStmt(n *yaml.Node) (Stmt, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, fmt.Errorf("%w at line %d: want a single-key mapping", ErrBadStatement, n.Line)
	}
	key, body := n.Content[0].Value, n.Content[1]
	pos := posOf(n)
	switch key {
	case "assign":
		var doc struct {
			Dst  string      `yaml:"dst"`
			Srcs []yaml.Node `yaml:"srcs"`
		}
		if err := decodeBody(body, &doc); err != nil {
			return nil, err
		}
		dst, err := ParseFieldRef(doc.Dst)
		if err != nil {
			return nil, err
		}
		srcs, err := decodeOperands(doc.Srcs)
		if err != nil {
			return nil, err
		}
		return &Assign{Dst: dst, Srcs: srcs, At: pos}, nil
	case "call":
		var doc struct {
			Method string      `yaml:"method"`
			Args   []yaml.Node `yaml:"args"`
		}
		if err := decodeBody(body, &doc); err != nil {
			return nil, err
		}
		args, err := decodeOperands(doc.Args)
		if err != nil {
			return nil, err
		}
		return &Call{Method: doc.Method, Args: args, At: pos}, nil
	case "push_front", "pop_front":
		var doc struct {
			Stack  string    `yaml:"stack"`
			Amount yaml.Node `yaml:"amount"`
		}
		if err := decodeBody(body, &doc); err != nil {
			return nil, err
		}
		amt, err := decodeOperand(&doc.Amount)
		if err != nil {
			return nil, err
		}
		op := PushFront
		if key == "pop_front" {
			op = PopFront
		}
		return &StackPrimitive{Op: op, Stack: doc.Stack, Amount: amt, At: pos}, nil
	default:
		return nil, fmt.Errorf("%w at line %d: unknown statement %q", ErrBadStatement, n.Line, key)
	}
}

// decodeBody decodes a statement body, rejecting unknown keys.
func decodeBody(body *yaml.Node, out any) error {
	if err := checkKeys(body, out); err != nil {
		return err
	}
	return body.Decode(out)
}

func decodeOperands(nodes []yaml.Node) ([]Operand, error) {
	out := make([]Operand, 0, len(nodes))
	for i := range nodes {
		op, err := decodeOperand(&nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func decodeOperand(n *yaml.Node) (Operand, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%w at line %d: operand must be a scalar", ErrBadStatement, n.Line)
	}
	if n.Tag == "!!int" {
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w at line %d: %v", ErrBadStatement, n.Line, err)
		}
		return Const{Value: v}, nil
	}
	return ParseFieldRef(n.Value)
}

func (p *Pragmas) UnmarshalYAML(n *yaml.Node) error {
	var doc struct {
		MutuallyExclusive []yaml.Node `yaml:"mutually_exclusive"`
		NoPack            []yaml.Node `yaml:"no_pack"`
		Alias             []yaml.Node `yaml:"alias"`
		Solitary          []string    `yaml:"solitary"`
		NoSplit           []string    `yaml:"no_split"`
	}
	if err := checkKeys(n, &doc); err != nil {
		return err
	}
	if err := n.Decode(&doc); err != nil {
		return err
	}
	var err error
	if p.MutuallyExclusive, err = decodePairs(doc.MutuallyExclusive); err != nil {
		return err
	}
	if p.NoPack, err = decodePairs(doc.NoPack); err != nil {
		return err
	}
	if p.Alias, err = decodePairs(doc.Alias); err != nil {
		return err
	}
	p.Solitary = doc.Solitary
	p.NoSplit = doc.NoSplit
	return nil
}

func decodePairs(nodes []yaml.Node) ([]FieldPair, error) {
	out := make([]FieldPair, 0, len(nodes))
	for i := range nodes {
		var pair []string
		if err := nodes[i].Decode(&pair); err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("ir: line %d: directive needs exactly two fields, got %d", nodes[i].Line, len(pair))
		}
		out = append(out, FieldPair{A: pair[0], B: pair[1], At: posOf(&nodes[i])})
	}
	return out, nil
}
