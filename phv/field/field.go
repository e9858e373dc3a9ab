// Package field holds the field database shared by every PHV analysis:
// fields, their role flags and alignment constraints, and field slices.
//
// Fields are owned by a Database and referred to everywhere else by their
// FieldID, a dense index issued in insertion order. A FieldSlice is a value
// (FieldID, BitRange) pair and compares structurally.
package field

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateField indicates a field name was added twice.
	ErrDuplicateField = errors.New("field: duplicate field name")

	// ErrBadSize indicates a non-positive field width.
	ErrBadSize = errors.New("field: width must be positive")

	// ErrUnknownField indicates a lookup by a name or id the database does not hold.
	ErrUnknownField = errors.New("field: unknown field")
)

// Gress is the pipeline thread a field belongs to.
type Gress int

const (
	Ingress Gress = iota
	Egress
)

// NumGress is the number of pipeline threads.
const NumGress = 2

func (g Gress) String() string {
	switch g {
	case Ingress:
		return "ingress"
	case Egress:
		return "egress"
	default:
		return fmt.Sprintf("gress(%d)", int(g))
	}
}

// ParseGress parses "ingress" or "egress".
func ParseGress(s string) (Gress, error) {
	switch strings.ToLower(s) {
	case "", "ingress":
		return Ingress, nil
	case "egress":
		return Egress, nil
	default:
		return 0, fmt.Errorf("field: unknown gress %q", s)
	}
}

// FieldID is the arena handle of a field inside its Database.
type FieldID int

// NoField is the invalid handle.
const NoField FieldID = -1

// Flags describe the role of a field.
type Flags uint16

const (
	FlagBridged Flags = 1 << iota
	FlagMetadata
	FlagPOV
	FlagDigest
	FlagDeparsed
	FlagSolitary
	FlagNoSplit
	FlagNeverOverlay
)

// flagNames lists flags in their canonical print order.
var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagBridged, "bridge"},
	{FlagMetadata, "meta"},
	{FlagPOV, "pov"},
	{FlagDigest, "digest"},
	{FlagDeparsed, "deparsed"},
	{FlagSolitary, "solitary"},
	{FlagNoSplit, "no_split"},
	{FlagNeverOverlay, "never_overlay"},
}

// ParseFlag maps a printed flag token back to its flag.
func ParseFlag(tok string) (Flags, bool) {
	for _, fn := range flagNames {
		if fn.name == tok {
			return fn.flag, true
		}
	}
	return 0, false
}

// Names returns the printed names of the set flags in canonical order.
func (f Flags) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

// Field is one named bit quantity of the program.
type Field struct {
	ID     FieldID
	Name   string
	Size   int
	Gress  Gress
	Header string // owning header instance, empty for standalone fields
	Flags  Flags

	// Alignment, when set, pins the field's bit 0 to container bits
	// congruent to it modulo 8.
	Alignment *int

	// ValidRange, when set, is the container bit interval the field must
	// live within.
	ValidRange *BitRange
}

func (f *Field) Has(fl Flags) bool { return f.Flags&fl == fl }

func (f *Field) IsMetadata() bool { return f.Has(FlagMetadata) }
func (f *Field) IsBridged() bool  { return f.Has(FlagBridged) }
func (f *Field) IsPOV() bool      { return f.Has(FlagPOV) }
func (f *Field) IsDigest() bool   { return f.Has(FlagDigest) }
func (f *Field) IsDeparsed() bool { return f.Has(FlagDeparsed) }

// Whole returns the slice covering every bit of the field.
func (f *Field) Whole() FieldSlice {
	return FieldSlice{Field: f.ID, Range: StartLen(0, f.Size)}
}

// Slice returns the slice of the field covering r.
func (f *Field) Slice(r BitRange) (FieldSlice, error) {
	if !r.Valid() || r.Hi >= f.Size {
		return FieldSlice{}, fmt.Errorf("field: range %s outside %s<%d>", r, f.Name, f.Size)
	}
	return FieldSlice{Field: f.ID, Range: r}, nil
}

// FieldSlice is a contiguous bit range of one field.
type FieldSlice struct {
	Field FieldID
	Range BitRange
}

// Size returns the width of the slice.
func (s FieldSlice) Size() int { return s.Range.Size() }

// Overlaps reports whether two slices cover a common bit of the same field.
func (s FieldSlice) Overlaps(o FieldSlice) bool {
	return s.Field == o.Field && s.Range.Overlaps(o.Range)
}
