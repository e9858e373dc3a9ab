package ir

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/phvkit/phv/field"
)

const sampleProgram = `
headers:
  - name: ethernet
    fields:
      - {name: dst, width: 48}
      - {name: etype, width: 16}
  - name: vlan
    stack: 4
    fields:
      - {name: pcp, width: 3}
      - {name: vid, width: 13}
  - name: meta
    metadata: true
    fields:
      - {name: n, width: 8}
parsers:
  - name: ig_parser
    gress: ingress
    start: start
    states:
      - {name: start, extract: [ethernet], next: [parse_vlan]}
      - {name: parse_vlan, extract: ["vlan[0]"], next: [parse_vlan]}
tables:
  - name: t_push
    keys: [ethernet.etype, "ethernet.dst[0:15]"]
    actions: [a_push]
    stage: 2
actions:
  - name: a_push
    body:
      - push_front: {stack: vlan, amount: 2}
      - pop_front: {stack: vlan, amount: meta.n}
      - assign: {dst: meta.n, srcs: [ethernet.etype, 7]}
      - call: {method: hash, args: [ethernet.dst]}
deparsers:
  - gress: ingress
    emits:
      - {field: ethernet.dst, pov: ethernet.$valid}
    checksums:
      - {dest: meta.n, sources: [ethernet.dst, ethernet.etype]}
    digests:
      - name: learn
        kind: learning
        field_lists: [[meta.n]]
pragmas:
  mutually_exclusive: [[ethernet.dst, meta.n]]
  no_pack: [[ethernet.etype, meta.n]]
  solitary: [meta.n]
lowered_stacks:
  - {stack: vlan, width: 9, valid_lo: 2, valid_hi: 5}
stages:
  min_stage: {t_push: 1}
  same_stage: [[t_push, t_push]]
`

func TestLoad(t *testing.T) {
	p, err := Load(strings.NewReader(sampleProgram))
	require.NoError(t, err)

	require.Len(t, p.Headers, 3)
	vlan, ok := p.Header("vlan")
	require.True(t, ok)
	assert.True(t, vlan.IsStack())
	assert.Equal(t, []string{"vlan[0]", "vlan[1]", "vlan[2]", "vlan[3]"}, vlan.Instances())
	assert.Greater(t, vlan.At.Line, 0)

	tbl, ok := p.Table("t_push")
	require.True(t, ok)
	require.Len(t, tbl.Keys, 2)
	assert.Equal(t, "ethernet.etype", tbl.Keys[0].Field)
	require.NotNil(t, tbl.Keys[1].Range)
	assert.Equal(t, field.BitRange{Lo: 0, Hi: 15}, *tbl.Keys[1].Range)
	require.NotNil(t, tbl.StagePin)
	assert.Equal(t, 2, *tbl.StagePin)

	act, ok := p.Action("a_push")
	require.True(t, ok)
	require.Len(t, act.Body, 4)

	push, ok := act.Body[0].(*StackPrimitive)
	require.True(t, ok)
	assert.Equal(t, PushFront, push.Op)
	assert.Equal(t, Const{Value: 2}, push.Amount)
	assert.Greater(t, push.Position().Line, 0)

	pop := act.Body[1].(*StackPrimitive)
	assert.Equal(t, PopFront, pop.Op)
	assert.Equal(t, FieldRef{Field: "meta.n"}, pop.Amount)

	asg := act.Body[2].(*Assign)
	assert.Equal(t, "meta.n", asg.Dst.Field)
	assert.Equal(t, []Operand{FieldRef{Field: "ethernet.etype"}, Const{Value: 7}}, asg.Srcs)

	require.Len(t, p.Pragmas.MutuallyExclusive, 1)
	assert.Equal(t, "ethernet.dst", p.Pragmas.MutuallyExclusive[0].A)
	assert.Equal(t, []string{"meta.n"}, p.Pragmas.Solitary)
	assert.Equal(t, 1, p.Stages.MinStage["t_push"])
	assert.Equal(t, [][2]string{{"t_push", "t_push"}}, p.Stages.SameStage)
	assert.Equal(t, DigestLearning, p.Deparsers[0].Digests[0].Kind)
	assert.Equal(t, LoweredStack{Stack: "vlan", Width: 9, ValidLo: 2, ValidHi: 5}, p.LoweredStacks[0])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "unknown action",
			src:     "tables:\n  - name: t\n    actions: [ghost]\n",
			wantErr: ErrUnknownAction,
		},
		{
			name:    "unknown state",
			src:     "parsers:\n  - name: p\n    states:\n      - {name: s, next: [ghost]}\n",
			wantErr: ErrUnknownState,
		},
		{
			name:    "unknown statement",
			src:     "actions:\n  - name: a\n    body:\n      - frobnicate: {}\n",
			wantErr: ErrBadStatement,
		},
		{
			name:    "duplicate action",
			src:     "actions:\n  - name: a\n  - name: a\n",
			wantErr: ErrDuplicate,
		},
		{
			name:    "misspelt header key",
			src:     "headers:\n  - name: m\n    metdata: true\n    fields: [{name: a, width: 8}]\n",
			wantErr: ErrUnknownKey,
		},
		{
			name:    "misspelt header field key",
			src:     "headers:\n  - name: h\n    fields: [{name: a, widht: 8}]\n",
			wantErr: ErrUnknownKey,
		},
		{
			name:    "misspelt table key",
			src:     "tables:\n  - name: t\n    stgae: 3\n",
			wantErr: ErrUnknownKey,
		},
		{
			name:    "misspelt state key",
			src:     "parsers:\n  - name: p\n    states:\n      - {name: s, extracts: [h]}\n",
			wantErr: ErrUnknownKey,
		},
		{
			name:    "misspelt checksum key",
			src:     "deparsers:\n  - checksums:\n      - {dst: h.c, sources: [h.a]}\n",
			wantErr: ErrUnknownKey,
		},
		{
			name:    "misspelt action key",
			src:     "actions:\n  - name: a\n    bdy: []\n",
			wantErr: ErrUnknownKey,
		},
		{
			name:    "misspelt statement key",
			src:     "actions:\n  - name: a\n    body:\n      - assign: {dest: h.a, srcs: [h.b]}\n",
			wantErr: ErrUnknownKey,
		},
		{
			name:    "misspelt pragma",
			src:     "pragmas:\n  solitery: [h.a]\n",
			wantErr: ErrUnknownKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	_, err := Load(strings.NewReader("pragmas:\n  no_pack: [[a, b, c]]\n"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("bogus_section: 1\n"))
	assert.Error(t, err, "unknown top-level keys are rejected")

	p, err := Load(strings.NewReader("headers:\n  - name: m\n    metadata: true\n    fields: [{name: a, width: 8}]\ntables:\n  - {name: t, stage: 3}\n"))
	require.NoError(t, err)
	assert.True(t, p.Headers[0].Metadata)
	require.NotNil(t, p.Tables[0].StagePin)
	assert.Equal(t, 3, *p.Tables[0].StagePin)
}

func TestLoad_Empty(t *testing.T) {
	p, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, p.Tables)
}

func TestReadsWrites(t *testing.T) {
	asg := &Assign{Dst: FieldRef{Field: "m.a"}, Srcs: []Operand{FieldRef{Field: "m.b"}, Const{Value: 1}}}
	assert.Equal(t, []FieldRef{{Field: "m.b"}}, Reads(asg))
	assert.Equal(t, []FieldRef{{Field: "m.a"}}, Writes(asg))

	call := &Call{Method: "count", Args: []Operand{FieldRef{Field: "m.c"}}}
	assert.Nil(t, Writes(call))
	assert.Equal(t, []FieldRef{{Field: "m.c"}}, Touches(call))

	push := &StackPrimitive{Op: PushFront, Stack: "vlan", Amount: Const{Value: 1}}
	assert.Empty(t, Reads(push))
	assert.Equal(t, []FieldRef{{Field: "vlan.$stkvalid"}}, Writes(push))
}

func TestParseFieldRef(t *testing.T) {
	ref, err := ParseFieldRef("vlan[1].vid[0:3]")
	require.NoError(t, err)
	assert.Equal(t, "vlan[1].vid", ref.Field)
	assert.Equal(t, "vlan[1].vid[0:3]", ref.String())

	ref, err = ParseFieldRef("vlan[1]")
	require.NoError(t, err)
	assert.Nil(t, ref.Range)

	_, err = ParseFieldRef("a.b[3:1]")
	assert.Error(t, err)
	_, err = ParseFieldRef("a.b[x:1]")
	assert.Error(t, err)
	_, err = ParseFieldRef("  ")
	assert.Error(t, err)
}

func TestHeaderStackInfo(t *testing.T) {
	info := NewHeaderStackInfo()
	info.Add(&StackEntry{Name: "vlan", Size: 4, MaxPush: 3})
	info.Add(&StackEntry{Name: "mpls", Size: 2, MaxPop: 1})
	assert.Equal(t, 2, info.Len())

	e, ok := info.Get("vlan")
	require.True(t, ok)
	assert.Equal(t, 7, e.ValidWidth())
	assert.Equal(t, field.BitRange{Lo: 3, Hi: 6}, e.ValidRange())

	info.Delete("vlan")
	info.Delete("ghost")
	require.Len(t, info.Entries(), 1)
	assert.Equal(t, "mpls", info.Entries()[0].Name)

	var nilInfo *HeaderStackInfo
	_, ok = nilInfo.Get("x")
	assert.False(t, ok)
	assert.Zero(t, nilInfo.Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.yaml")
	require.NoError(t, os.WriteFile(path, append([]byte{0xef, 0xbb, 0xbf}, sampleProgram...), 0o644))
	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, p.Headers, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
