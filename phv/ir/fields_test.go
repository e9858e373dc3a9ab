package ir

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/pkg/diag"
)

func TestBuildFields(t *testing.T) {
	p, err := Load(strings.NewReader(`
headers:
  - name: ethernet
    fields: [{name: dst, width: 48}, {name: etype, width: 16}]
  - name: vlan
    stack: 2
    gress: egress
    fields: [{name: vid, width: 12}]
  - name: meta
    metadata: true
    fields: [{name: a, width: 8}]
  - name: bridged
    bridged: true
    fields: [{name: port, width: 9}]
deparsers:
  - emits: [{field: ethernet.dst, pov: ethernet.$valid}]
    digests:
      - {name: learn, kind: learning, field_lists: [[meta.a]]}
`))
	require.NoError(t, err)
	p.StackInfo = NewHeaderStackInfo()
	p.StackInfo.Add(&StackEntry{Name: "vlan", Size: 2, MaxPush: 1, MaxPop: 2})

	db, err := BuildFields(p)
	require.NoError(t, err)

	var names []string
	for _, f := range db.All() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"ethernet.dst", "ethernet.etype", "ethernet.$valid",
		"vlan[0].vid", "vlan[0].$valid", "vlan[1].vid", "vlan[1].$valid", "vlan.$stkvalid",
		"meta.a", "bridged.port",
	}, names)

	dst, _ := db.Lookup("ethernet.dst")
	assert.True(t, dst.IsDeparsed())
	assert.Equal(t, "ethernet", dst.Header)

	pov, _ := db.Lookup("ethernet.$valid")
	assert.True(t, pov.IsPOV())
	assert.Equal(t, 1, pov.Size)

	stk, _ := db.Lookup("vlan.$stkvalid")
	assert.Equal(t, 5, stk.Size)
	assert.Equal(t, field.Egress, stk.Gress)

	a, _ := db.Lookup("meta.a")
	assert.True(t, a.IsMetadata())
	assert.True(t, a.IsDigest())

	port, _ := db.Lookup("bridged.port")
	assert.True(t, port.IsBridged())
	assert.True(t, port.IsMetadata())
	_, ok := db.Lookup("bridged.$valid")
	assert.False(t, ok, "bridged headers carry no POV bit")
}

func TestBuildFields_MissingGeometry(t *testing.T) {
	p, err := Load(strings.NewReader(`
headers:
  - {name: vlan, stack: 2, fields: [{name: vid, width: 12}]}
`))
	require.NoError(t, err)

	_, err = BuildFields(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrFatal))
}

func TestBuildFields_UndeclaredEmit(t *testing.T) {
	p, err := Load(strings.NewReader(`
deparsers:
  - emits: [{field: ghost.f, pov: ghost.$valid}]
`))
	require.NoError(t, err)

	_, err = BuildFields(p)
	assert.True(t, errors.Is(err, diag.ErrFatal))
}
