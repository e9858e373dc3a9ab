// Package sctext reads and writes the supercluster debug dump format used
// by allocation test fixtures. Parsing and re-emitting a dump reproduces
// it byte for byte.
package sctext

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/joshuapare/phvkit/internal/input"
	"github.com/joshuapare/phvkit/phv/cluster"
	"github.com/joshuapare/phvkit/phv/field"
)

var (
	// ErrSyntax indicates a malformed dump line.
	ErrSyntax = errors.New("sctext: syntax error")

	// ErrFieldMismatch indicates one field printed with two different shapes.
	ErrFieldMismatch = errors.New("sctext: inconsistent field attributes")
)

// Document is the result of parsing a dump.
type Document struct {
	DB            *field.Database
	Registry      *cluster.Registry
	SuperClusters []*cluster.SuperCluster
}

// Parse reads every supercluster of a dump into a fresh database.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{DB: field.NewDatabase(), Registry: cluster.NewRegistry()}
	scs, err := ParseInto(r, doc.DB, doc.Registry)
	if err != nil {
		return nil, err
	}
	doc.SuperClusters = scs
	return doc, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads a dump from disk, inflating compressed files.
func ParseFile(path string) (*Document, error) {
	data, err := input.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}

// Format re-emits every supercluster of the document.
func (d *Document) Format() string {
	var b strings.Builder
	_ = Write(&b, d.DB, d.SuperClusters)
	return b.String()
}

type section int

const (
	sectionNone section = iota
	sectionHeader
	sectionLists
	sectionRotational
)

type pending struct {
	uid   int
	lists []*cluster.SliceList
	rots  []*cluster.RotationalCluster
}

// ParseInto reads superclusters, registering fields in db and clusters in
// reg. Fields already present must match the printed attributes.
func ParseInto(r io.Reader, db *field.Database, reg *cluster.Registry) ([]*cluster.SuperCluster, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var out []*cluster.SuperCluster
	var cur *pending
	var open *cluster.SliceList
	state := sectionNone
	lineNo := 0

	finish := func() error {
		if cur == nil {
			return nil
		}
		if open != nil {
			return fmt.Errorf("%w: line %d: unterminated slice list", ErrSyntax, lineNo)
		}
		sc, err := cluster.NewSuperCluster(cur.uid, cur.rots, cur.lists)
		if err != nil {
			return err
		}
		out = append(out, sc)
		cur = nil
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), CR)
		trim := strings.TrimSpace(line)
		if trim == "" {
			continue
		}
		switch {
		case strings.HasPrefix(trim, SuperClusterPrefix):
			if err := finish(); err != nil {
				return nil, err
			}
			uid, err := strconv.Atoi(strings.TrimPrefix(trim, SuperClusterPrefix))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad uid: %v", ErrSyntax, lineNo, err)
			}
			cur = &pending{uid: uid}
			state = sectionHeader
			continue
		case cur == nil:
			return nil, fmt.Errorf("%w: line %d: expected %q", ErrSyntax, lineNo, strings.TrimSpace(SuperClusterPrefix))
		case trim == SliceListsHeader:
			state = sectionLists
			continue
		case trim == RotationalHeader:
			if open != nil {
				return nil, fmt.Errorf("%w: line %d: unterminated slice list", ErrSyntax, lineNo)
			}
			state = sectionRotational
			continue
		}

		switch state {
		case sectionLists:
			if trim == EmptyList {
				continue
			}
			body := trim
			if open == nil {
				if !strings.HasPrefix(body, ListOpen) {
					return nil, fmt.Errorf("%w: line %d: slice list must start with %q", ErrSyntax, lineNo, ListOpen)
				}
				body = strings.TrimPrefix(body, ListOpen)
				open = &cluster.SliceList{}
			}
			closed := strings.HasSuffix(body, ListClose)
			body = strings.TrimSuffix(body, ListClose)
			s, err := parseSlice(db, body)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			open.Slices = append(open.Slices, s)
			if closed {
				cur.lists = append(cur.lists, open)
				open = nil
			}
		case sectionRotational:
			rc, err := parseRotational(db, reg, trim)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur.rots = append(cur.rots, rc)
		default:
			return nil, fmt.Errorf("%w: line %d: unexpected %q", ErrSyntax, lineNo, trim)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseRotational reads "[[fs, fs], [fs]]".
func parseRotational(db *field.Database, reg *cluster.Registry, line string) (*cluster.RotationalCluster, error) {
	if !strings.HasPrefix(line, GroupOpen+GroupOpen) || !strings.HasSuffix(line, GroupClose+GroupClose) {
		return nil, fmt.Errorf("%w: rotational cluster %q", ErrSyntax, line)
	}
	inner := line[len(GroupOpen) : len(line)-len(GroupClose)]
	inner = inner[len(GroupOpen) : len(inner)-len(GroupClose)]
	var clusters []*cluster.AlignedCluster
	for _, group := range strings.Split(inner, GroupSeparator) {
		var slices []field.FieldSlice
		for _, tok := range strings.Split(group, SliceSeparator) {
			s, err := parseSlice(db, tok)
			if err != nil {
				return nil, err
			}
			slices = append(slices, s)
		}
		clusters = append(clusters, reg.NewAligned(slices...))
	}
	return reg.NewRotational(clusters...), nil
}

// parseSlice reads "<name><size> [^align] [^bit[lo..hi]] [flags...] [lo:hi]"
// and registers the field on first sight.
func parseSlice(db *field.Database, text string) (field.FieldSlice, error) {
	toks := strings.Fields(text)
	if len(toks) < 2 {
		return field.FieldSlice{}, fmt.Errorf("%w: field slice %q", ErrSyntax, text)
	}
	head := toks[0]
	lt := strings.LastIndex(head, SizeOpen)
	if lt <= 0 || !strings.HasSuffix(head, SizeClose) {
		return field.FieldSlice{}, fmt.Errorf("%w: field %q has no width", ErrSyntax, head)
	}
	name := head[:lt]
	size, err := strconv.Atoi(head[lt+1 : len(head)-1])
	if err != nil {
		return field.FieldSlice{}, fmt.Errorf("%w: field %q: %v", ErrSyntax, head, err)
	}
	rng, err := parseRange(toks[len(toks)-1])
	if err != nil {
		return field.FieldSlice{}, err
	}

	var (
		flags field.Flags
		align *int
		valid *field.BitRange
		seen  []string
		stage int
	)
	// attributes appear as [^align] [^bit[lo..hi]] [flags...], each once,
	// flags in canonical order, so that re-emission reproduces the text.
	order := func(tok string, s int) error {
		if s < stage || (s == stage && s < attrFlags) {
			return fmt.Errorf("%w: attribute %q out of order", ErrSyntax, tok)
		}
		stage = s
		return nil
	}
	for _, tok := range toks[1 : len(toks)-1] {
		switch {
		case strings.HasPrefix(tok, ValidRangePrefix):
			if err := order(tok, attrValid); err != nil {
				return field.FieldSlice{}, err
			}
			lo, hi, ok := strings.Cut(strings.TrimSuffix(strings.TrimPrefix(tok, ValidRangePrefix), GroupClose), ValidRangeSeparator)
			l, errL := strconv.Atoi(lo)
			h, errH := strconv.Atoi(hi)
			if !ok || errL != nil || errH != nil {
				return field.FieldSlice{}, fmt.Errorf("%w: valid range %q", ErrSyntax, tok)
			}
			valid = &field.BitRange{Lo: l, Hi: h}
		case strings.HasPrefix(tok, AttrPrefix):
			if err := order(tok, attrAlign); err != nil {
				return field.FieldSlice{}, err
			}
			a, err := strconv.Atoi(strings.TrimPrefix(tok, AttrPrefix))
			if err != nil || a < 0 || a >= 8 {
				return field.FieldSlice{}, fmt.Errorf("%w: alignment %q", ErrSyntax, tok)
			}
			align = &a
		default:
			if err := order(tok, attrFlags); err != nil {
				return field.FieldSlice{}, err
			}
			fl, ok := field.ParseFlag(tok)
			if !ok {
				return field.FieldSlice{}, fmt.Errorf("%w: unknown flag %q", ErrSyntax, tok)
			}
			flags |= fl
			seen = append(seen, tok)
		}
	}
	if !slices.Equal(seen, flags.Names()) {
		return field.FieldSlice{}, fmt.Errorf("%w: flags %q not in canonical order %q",
			ErrSyntax, strings.Join(seen, " "), strings.Join(flags.Names(), " "))
	}

	f, ok := db.Lookup(name)
	if !ok {
		opts := []field.Option{field.WithFlags(flags)}
		if strings.HasPrefix(name, EgressPrefix) {
			opts = append(opts, field.WithGress(field.Egress))
		}
		if align != nil {
			opts = append(opts, field.WithAlignment(*align))
		}
		if valid != nil {
			opts = append(opts, field.WithValidRange(*valid))
		}
		if f, err = db.Add(name, size, opts...); err != nil {
			return field.FieldSlice{}, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
	} else if !sameShape(f, size, flags, align, valid) {
		return field.FieldSlice{}, fmt.Errorf("%w: %s", ErrFieldMismatch, name)
	}
	s, err := f.Slice(rng)
	if err != nil {
		return field.FieldSlice{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return s, nil
}

// attribute positions within a printed slice
const (
	attrAlign = iota + 1
	attrValid
	attrFlags
)

func parseRange(tok string) (field.BitRange, error) {
	if !strings.HasPrefix(tok, GroupOpen) || !strings.HasSuffix(tok, GroupClose) {
		return field.BitRange{}, fmt.Errorf("%w: slice range %q", ErrSyntax, tok)
	}
	lo, hi, ok := strings.Cut(tok[1:len(tok)-1], ":")
	l, errL := strconv.Atoi(lo)
	h, errH := strconv.Atoi(hi)
	if !ok || errL != nil || errH != nil {
		return field.BitRange{}, fmt.Errorf("%w: slice range %q", ErrSyntax, tok)
	}
	return field.BitRange{Lo: l, Hi: h}, nil
}

func sameShape(f *field.Field, size int, flags field.Flags, align *int, valid *field.BitRange) bool {
	if f.Size != size || f.Flags != flags {
		return false
	}
	if (f.Alignment == nil) != (align == nil) || (align != nil && *f.Alignment != *align%8) {
		return false
	}
	if (f.ValidRange == nil) != (valid == nil) || (valid != nil && *f.ValidRange != *valid) {
		return false
	}
	return true
}
