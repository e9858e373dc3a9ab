package field

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Database is the arena of fields for one compilation.
type Database struct {
	fields []*Field
	byName map[string]FieldID
}

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{byName: make(map[string]FieldID)}
}

// Option adjusts a field as it is added.
type Option func(*Field)

// WithFlags sets role flags.
func WithFlags(fl Flags) Option {
	return func(f *Field) { f.Flags |= fl }
}

// WithGress sets the owning thread.
func WithGress(g Gress) Option {
	return func(f *Field) { f.Gress = g }
}

// WithHeader records the owning header instance.
func WithHeader(h string) Option {
	return func(f *Field) { f.Header = h }
}

// WithAlignment pins bit 0 of the field to container bits congruent to a mod 8.
func WithAlignment(a int) Option {
	return func(f *Field) {
		a %= 8
		f.Alignment = &a
	}
}

// WithValidRange limits the container bits the field may occupy.
func WithValidRange(r BitRange) Option {
	return func(f *Field) { f.ValidRange = &r }
}

// Add creates a field. Ids are issued in insertion order starting at 0.
func (db *Database) Add(name string, size int, opts ...Option) (*Field, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s<%d>", ErrBadSize, name, size)
	}
	if _, dup := db.byName[name]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateField, name)
	}
	f := &Field{ID: FieldID(len(db.fields)), Name: name, Size: size}
	for _, opt := range opts {
		opt(f)
	}
	db.fields = append(db.fields, f)
	db.byName[name] = f.ID
	return f, nil
}

// Get returns the field with the given id, or nil.
func (db *Database) Get(id FieldID) *Field {
	if id < 0 || int(id) >= len(db.fields) {
		return nil
	}
	return db.fields[id]
}

// Lookup finds a field by name.
func (db *Database) Lookup(name string) (*Field, bool) {
	id, ok := db.byName[name]
	if !ok {
		return nil, false
	}
	return db.fields[id], true
}

// MustLookup finds a field by name and returns ErrUnknownField otherwise.
func (db *Database) MustLookup(name string) (*Field, error) {
	f, ok := db.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return f, nil
}

// Len returns the number of fields.
func (db *Database) Len() int { return len(db.fields) }

// All returns the fields in id order. The slice must not be modified.
func (db *Database) All() []*Field { return db.fields }

// Names returns every field name, sorted.
func (db *Database) Names() []string {
	out := make([]string, 0, len(db.fields))
	for _, f := range db.fields {
		out = append(out, f.Name)
	}
	sort.Strings(out)
	return out
}

// SliceString formats a slice the way the debug dumps print it:
//
//	<name><size> [^<align>] [^bit[lo..hi]] [flags...] [lo:hi]
func (db *Database) SliceString(s FieldSlice) string {
	f := db.Get(s.Field)
	if f == nil {
		return "-NULL-"
	}
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('<')
	b.WriteString(strconv.Itoa(f.Size))
	b.WriteByte('>')
	if f.Alignment != nil {
		b.WriteString(" ^")
		b.WriteString(strconv.Itoa(*f.Alignment))
	}
	if f.ValidRange != nil {
		fmt.Fprintf(&b, " ^bit[%d..%d]", f.ValidRange.Lo, f.ValidRange.Hi)
	}
	for _, n := range f.Flags.Names() {
		b.WriteByte(' ')
		b.WriteString(n)
	}
	b.WriteByte(' ')
	b.WriteString(s.Range.String())
	return b.String()
}

// Name returns the field name for id, or "-NULL-".
func (db *Database) Name(id FieldID) string {
	if f := db.Get(id); f != nil {
		return f.Name
	}
	return "-NULL-"
}
