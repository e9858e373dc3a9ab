package mutex

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/phv/stackinfo"
	"github.com/joshuapare/phvkit/pkg/diag"
)

const branchyProgram = `
headers:
  - name: ethernet
    fields: [{name: dst, width: 48}, {name: etype, width: 16}]
  - name: ipv4
    fields: [{name: ttl, width: 8}, {name: dst, width: 32}, {name: csum, width: 16}]
  - name: ipv6
    fields: [{name: hlim, width: 8}, {name: dst, width: 128}]
  - name: tcp
    fields: [{name: sport, width: 16}]
  - name: udp
    fields: [{name: sport, width: 16}]
  - name: opt
    fields: [{name: kind, width: 8}]
  - name: meta
    metadata: true
    fields: [{name: x, width: 8}, {name: y, width: 8}]
parsers:
  - name: ig
    gress: ingress
    start: start
    states:
      - {name: start, extract: [ethernet], next: [parse_ipv4, parse_ipv6]}
      - {name: parse_ipv4, extract: [ipv4], next: [parse_tcp, parse_opt]}
      - {name: parse_ipv6, extract: [ipv6], next: [parse_udp]}
      - {name: parse_tcp, extract: [tcp]}
      - {name: parse_udp, extract: [udp]}
      - {name: parse_opt, extract: [opt], next: [parse_opt2]}
      - {name: parse_opt2, next: [parse_opt]}
`

func setup(t *testing.T, src string) (*ir.Program, *field.Database) {
	t.Helper()
	p, err := ir.Load(strings.NewReader(src))
	require.NoError(t, err)
	_, err = stackinfo.Collect(p)
	require.NoError(t, err)
	db, err := ir.BuildFields(p)
	require.NoError(t, err)
	return p, db
}

func id(t *testing.T, db *field.Database, name string) field.FieldID {
	t.Helper()
	f, ok := db.Lookup(name)
	require.True(t, ok, "field %s", name)
	return f.ID
}

func assertSymmetric(t *testing.T, db *field.Database, rel *Relation) {
	t.Helper()
	for _, a := range db.All() {
		assert.False(t, rel.IsFieldMutex(a.ID, a.ID), "%s mutex with itself", a.Name)
		for _, b := range db.All() {
			assert.Equal(t, rel.IsFieldMutex(a.ID, b.ID), rel.IsFieldMutex(b.ID, a.ID),
				"asymmetric pair (%s, %s)", a.Name, b.Name)
		}
	}
}

func TestRelation_Basics(t *testing.T) {
	r := NewRelation(4)
	r.AddFieldMutex(0, 3)
	r.AddFieldMutex(2, 2)
	r.AddFieldMutex(-1, 2)

	assert.True(t, r.IsFieldMutex(3, 0))
	assert.False(t, r.IsFieldMutex(2, 2))
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []field.FieldID{3}, r.Mutexes(0))

	snap := r.Clone()
	assert.True(t, r.RemoveFieldMutex(3, 0))
	assert.False(t, r.RemoveFieldMutex(3, 0))
	assert.True(t, r.SubsetOf(snap))
	assert.False(t, snap.SubsetOf(r))
}

func TestReachability(t *testing.T) {
	p, _ := setup(t, branchyProgram)
	r := NewReachability(&p.Parsers[0])

	idx := func(name string) int {
		i, ok := r.State(name)
		require.True(t, ok)
		return i
	}
	assert.True(t, r.Reaches(idx("start"), idx("parse_tcp")))
	assert.False(t, r.Reaches(idx("parse_tcp"), idx("start")))
	assert.True(t, r.Related(idx("parse_tcp"), idx("start")))
	assert.False(t, r.Related(idx("parse_ipv4"), idx("parse_ipv6")))
	assert.True(t, r.Reaches(idx("parse_opt2"), idx("parse_opt")), "states on a loop reach each other")
	assert.True(t, r.Reaches(idx("parse_opt"), idx("parse_opt2")))
	assert.True(t, r.Reaches(idx("parse_udp"), idx("parse_udp")))
}

func TestSeedAndRelaxParser(t *testing.T) {
	p, db := setup(t, branchyProgram)
	rel := NewRelation(db.Len())

	require.NoError(t, Seed(p, db, rel))
	ttl, hlim := id(t, db, "ipv4.ttl"), id(t, db, "ipv6.hlim")
	eth := id(t, db, "ethernet.dst")
	metaX := id(t, db, "meta.x")
	assert.True(t, rel.IsFieldMutex(ttl, eth), "seeded")
	assert.False(t, rel.IsFieldMutex(metaX, eth), "metadata is never seeded")
	assert.False(t, rel.IsFieldMutex(id(t, db, "ipv4.$valid"), eth), "pov bits are never seeded")

	removed, err := RelaxParser(p, db, rel)
	require.NoError(t, err)
	assert.Positive(t, removed)

	assert.False(t, rel.IsFieldMutex(ttl, eth), "ethernet precedes ipv4 on one path")
	assert.False(t, rel.IsFieldMutex(ttl, id(t, db, "ipv4.dst")), "same state")
	assert.False(t, rel.IsFieldMutex(ttl, id(t, db, "tcp.sport")))
	assert.False(t, rel.IsFieldMutex(id(t, db, "opt.kind"), ttl))
	assert.True(t, rel.IsFieldMutex(ttl, hlim), "ipv4 and ipv6 are sibling branches")
	assert.True(t, rel.IsFieldMutex(id(t, db, "tcp.sport"), id(t, db, "udp.sport")))
	assert.True(t, rel.IsFieldMutex(id(t, db, "opt.kind"), hlim))
	assertSymmetric(t, db, rel)
}

func TestSeed_UnknownHeader(t *testing.T) {
	p, err := ir.Load(strings.NewReader(`
parsers:
  - name: ig
    states:
      - {name: start, extract: [ghost]}
`))
	require.NoError(t, err)
	db := field.NewDatabase()
	err = Seed(p, db, NewRelation(0))
	assert.True(t, errors.Is(err, diag.ErrFatal))
}

func TestRelaxMAU(t *testing.T) {
	p, db := setup(t, branchyProgram+`
tables:
  - name: route
    keys: [ipv4.dst, ipv6.dst]
    actions: [set_hop]
actions:
  - name: set_hop
    body:
      - assign: {dst: meta.x, srcs: [tcp.sport]}
      - call: {method: count, args: [udp.sport]}
`)
	rel := NewRelation(db.Len())
	require.NoError(t, Seed(p, db, rel))
	_, err := RelaxParser(p, db, rel)
	require.NoError(t, err)

	v4, v6 := id(t, db, "ipv4.dst"), id(t, db, "ipv6.dst")
	tcp, udp := id(t, db, "tcp.sport"), id(t, db, "udp.sport")
	require.True(t, rel.IsFieldMutex(v4, v6))
	require.True(t, rel.IsFieldMutex(tcp, udp))

	removed, err := RelaxMAU(p, db, rel)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, rel.IsFieldMutex(v4, v6), "matched together by one table")
	assert.False(t, rel.IsFieldMutex(tcp, udp), "touched in one action")
	assert.True(t, rel.IsFieldMutex(id(t, db, "ipv4.ttl"), id(t, db, "ipv6.hlim")))
}

func TestRelaxMAU_UndeclaredField(t *testing.T) {
	p, db := setup(t, `
actions:
  - name: a
    body:
      - assign: {dst: meta.ghost, srcs: [1]}
`)
	_, err := RelaxMAU(p, db, NewRelation(db.Len()))
	assert.True(t, errors.Is(err, diag.ErrFatal))
}

func TestRelaxDeparser_POVGroups(t *testing.T) {
	p, db := setup(t, branchyProgram+`
deparsers:
  - emits:
      - {field: ipv4.ttl, pov: ipv4.$valid}
      - {field: ipv6.hlim, pov: ipv4.$valid}
      - {field: tcp.sport, pov: tcp.$valid}
`)
	rel := NewRelation(db.Len())
	require.NoError(t, Seed(p, db, rel))
	_, err := RelaxParser(p, db, rel)
	require.NoError(t, err)

	ttl, hlim := id(t, db, "ipv4.ttl"), id(t, db, "ipv6.hlim")
	require.True(t, rel.IsFieldMutex(ttl, hlim))

	_, err = RelaxDeparser(p, db, rel)
	require.NoError(t, err)
	assert.False(t, rel.IsFieldMutex(ttl, hlim), "emitted under the same POV bit")
	assert.True(t, rel.IsFieldMutex(id(t, db, "tcp.sport"), id(t, db, "udp.sport")))
}

func TestRelaxDeparser_Checksum(t *testing.T) {
	src := branchyProgram + `
deparsers:
  - checksums:
      - {dest: ipv4.csum, sources: [ipv6.hlim, udp.sport]}
`
	t.Run("dead checksum keeps mutex", func(t *testing.T) {
		p, db := setup(t, src)
		rel := NewRelation(db.Len())
		require.NoError(t, Seed(p, db, rel))
		_, err := RelaxParser(p, db, rel)
		require.NoError(t, err)

		// ipv4.csum is exclusive with every ipv6-side source.
		removed, err := RelaxDeparser(p, db, rel)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("live checksum relaxes sources", func(t *testing.T) {
		p, db := setup(t, src)
		rel := NewRelation(db.Len())
		require.NoError(t, Seed(p, db, rel))
		_, err := RelaxParser(p, db, rel)
		require.NoError(t, err)

		csum, hlim := id(t, db, "ipv4.csum"), id(t, db, "ipv6.hlim")
		udp := id(t, db, "udp.sport")
		rel.RemoveFieldMutex(csum, hlim)
		rel.AddFieldMutex(hlim, udp)

		_, err = RelaxDeparser(p, db, rel)
		require.NoError(t, err)
		assert.False(t, rel.IsFieldMutex(hlim, udp))
		assert.False(t, rel.IsFieldMutex(csum, udp))
	})
}

func TestApplyPragmasAndAliases(t *testing.T) {
	p, db := setup(t, branchyProgram+`
pragmas:
  mutually_exclusive:
    - [meta.x, meta.y]
    - [ipv4.ttl, ipv6.hlim]
    - [meta.x, ghost.f]
  alias:
    - [meta.y, ipv4.ttl]
    - [meta.zz, ipv4.ttl]
`)
	rel := NewRelation(db.Len())
	require.NoError(t, Seed(p, db, rel))
	_, err := RelaxParser(p, db, rel)
	require.NoError(t, err)

	report := diag.NewReport()
	added := ApplyPragmas(p, db, rel, report)
	assert.Equal(t, 1, added)
	assert.True(t, rel.IsFieldMutex(id(t, db, "meta.x"), id(t, db, "meta.y")))
	assert.Len(t, report.Warnings(), 2, "already-mutex pair and unknown field")

	marked := MarkAliases(p, db, report)
	assert.Equal(t, 2, marked)
	y, _ := db.Lookup("meta.y")
	assert.True(t, y.Has(field.FlagNeverOverlay))
	assert.True(t, rel.IsFieldMutex(id(t, db, "meta.x"), y.ID), "aliasing leaves mutex alone")
	assert.Len(t, report.Warnings(), 3)
}

func TestRelaxationIsMonotone(t *testing.T) {
	p, db := setup(t, branchyProgram+`
tables:
  - name: route
    keys: [ipv4.dst, ipv6.dst]
    actions: [a]
actions:
  - name: a
    body:
      - assign: {dst: ipv4.ttl, srcs: [ipv6.hlim]}
deparsers:
  - emits:
      - {field: tcp.sport, pov: tcp.$valid}
      - {field: udp.sport, pov: tcp.$valid}
`)
	rel := NewRelation(db.Len())
	require.NoError(t, Seed(p, db, rel))

	passes := []func() error{
		func() error { _, err := RelaxParser(p, db, rel); return err },
		func() error { _, err := RelaxMAU(p, db, rel); return err },
		func() error { _, err := RelaxDeparser(p, db, rel); return err },
	}
	prev := rel.Clone()
	for i, pass := range passes {
		require.NoError(t, pass())
		assert.True(t, rel.SubsetOf(prev), "pass %d re-added a removed pair", i)
		prev = rel.Clone()
	}
	assertSymmetric(t, db, rel)
}
