package cluster

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/phvkit/internal/bitvec"
	"github.com/joshuapare/phvkit/phv/field"
)

var (
	// ErrOverlap indicates a placement onto container bits already in use.
	ErrOverlap = errors.New("cluster: container bits already occupied")

	// ErrNoParent indicates Commit on a root transaction.
	ErrNoParent = errors.New("cluster: transaction has no parent")
)

// ErrorCode classifies an expected allocation failure.
type ErrorCode int

const (
	ErrUnknown ErrorCode = iota
	NotEnoughSpace
	NoValidScAllocAlignment
	PackConflictPresent
	ContainerTypeMismatch
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnknown:              "UNKNOWN",
	NotEnoughSpace:          "NOT_ENOUGH_SPACE",
	NoValidScAllocAlignment: "NO_VALID_SC_ALLOC_ALIGNMENT",
	PackConflictPresent:     "PACK_CONFLICT_PRESENT",
	ContainerTypeMismatch:   "CONTAINER_TYPE_MISMATCH",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeNames[c]; ok {
		return n
	}
	return "ErrorCode(" + strconv.Itoa(int(c)) + ")"
}

// MarshalText renders the code by name.
func (c ErrorCode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// AllocError is an expected infeasibility. Callers retry at another width
// or report it as an ordinary compilation failure.
type AllocError struct {
	Code  ErrorCode
	Msg   string
	Lists []*SliceList
}

func (e *AllocError) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

// Container is a physical container of a given width.
type Container struct {
	Width int
	Index int
}

func (c Container) String() string {
	switch c.Width {
	case 8:
		return "B" + strconv.Itoa(c.Index)
	case 16:
		return "H" + strconv.Itoa(c.Index)
	case 32:
		return "W" + strconv.Itoa(c.Index)
	}
	return fmt.Sprintf("C%d_%d", c.Width, c.Index)
}

// Placement puts a slice at container bit Lo upwards.
type Placement struct {
	Slice     field.FieldSlice
	Container Container
	Lo        int
}

// Bits returns the container bits the placement occupies.
func (p Placement) Bits() field.BitRange {
	return field.StartLen(p.Lo, p.Slice.Size())
}

// Transaction accumulates placements on top of an optional parent. A
// child only becomes visible in its parent after Commit.
type Transaction struct {
	parent *Transaction
	placed []Placement
	used   map[Container]bitvec.Bitvec
}

// NewTransaction returns an empty root transaction.
func NewTransaction() *Transaction {
	return &Transaction{used: make(map[Container]bitvec.Bitvec)}
}

// Fork opens a child transaction.
func (t *Transaction) Fork() *Transaction {
	return &Transaction{parent: t, used: make(map[Container]bitvec.Bitvec)}
}

// Occupied returns the bits of c in use here or in any ancestor.
func (t *Transaction) Occupied(c Container) bitvec.Bitvec {
	var out bitvec.Bitvec
	for cur := t; cur != nil; cur = cur.parent {
		out = out.Or(cur.used[c])
	}
	return out
}

// Assign records p. Bits outside the container or already in use fail.
func (t *Transaction) Assign(p Placement) error {
	r := p.Bits()
	if r.Lo < 0 || r.Hi >= p.Container.Width {
		return fmt.Errorf("cluster: %s does not fit %s", r, p.Container)
	}
	want := bitvec.Range(r.Lo, r.Size())
	if !t.Occupied(p.Container).And(want).Empty() {
		return fmt.Errorf("%w: %s %s", ErrOverlap, p.Container, r)
	}
	t.used[p.Container] = t.used[p.Container].Or(want)
	t.placed = append(t.placed, p)
	return nil
}

// Placements returns ancestor placements first, then this transaction's.
func (t *Transaction) Placements() []Placement {
	var chain []*Transaction
	for cur := t; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	var out []Placement
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].placed...)
	}
	return out
}

// Commit moves the placements into the parent.
func (t *Transaction) Commit() error {
	if t.parent == nil {
		return ErrNoParent
	}
	for _, p := range t.placed {
		if err := t.parent.Assign(p); err != nil {
			return err
		}
	}
	t.placed = nil
	t.used = make(map[Container]bitvec.Bitvec)
	return nil
}

// AllocResult is either a transaction or an AllocError.
type AllocResult struct {
	Tx        *Transaction
	Alignment *ScAllocAlignment
	Err       *AllocError
}

// Ok reports whether the attempt succeeded.
func (r AllocResult) Ok() bool { return r.Err == nil }

// Conflicts is the no-pack query placement needs.
type Conflicts interface {
	HasPackConflict(a, b field.FieldSlice) bool
}

// PlaceOptions controls Place.
type PlaceOptions struct {
	Width      int
	Containers int // available containers of Width; 0 means unlimited
	Limit      int // bound passed to Alignments
	Conflicts  Conflicts
}

// Place realises sc in containers of one width: every slice list takes
// its own container at the offsets of the first consistent alignment, and
// each aligned cluster outside the lists takes one container per slice.
func Place(db *field.Database, sc *SuperCluster, opts PlaceOptions) (AllocResult, error) {
	for _, ac := range sc.AlignedClusters() {
		if ac.MaxWidth() > opts.Width {
			return AllocResult{Err: &AllocError{
				Code: ContainerTypeMismatch,
				Msg:  fmt.Sprintf("aligned cluster %d is %d bits wide, container is %d", ac.id, ac.MaxWidth(), opts.Width),
			}}, nil
		}
	}
	if opts.Conflicts != nil {
		for _, l := range sc.lists {
			for i, a := range l.Slices {
				for _, b := range l.Slices[i+1:] {
					if opts.Conflicts.HasPackConflict(a, b) {
						return AllocResult{Err: &AllocError{
							Code:  PackConflictPresent,
							Msg:   fmt.Sprintf("slices of fields %d and %d in one slice list may not share a container", a.Field, b.Field),
							Lists: []*SliceList{l},
						}}, nil
					}
				}
			}
		}
	}

	aligns, err := sc.Alignments(db, opts.Width, opts.Limit)
	if err != nil {
		return AllocResult{}, err
	}
	if len(aligns) == 0 {
		return AllocResult{Err: &AllocError{
			Code:  NoValidScAllocAlignment,
			Msg:   fmt.Sprintf("supercluster %d has no alignment in %d-bit containers", sc.Uid, opts.Width),
			Lists: sc.lists,
		}}, nil
	}

	root := NewTransaction()
	var last *AllocError
	for _, a := range aligns {
		tx := root.Fork()
		e, err := sc.fill(db, tx, a, opts)
		if err != nil {
			return AllocResult{}, err
		}
		if e != nil {
			last = e
			continue
		}
		return AllocResult{Tx: tx, Alignment: a}, nil
	}
	return AllocResult{Err: last}, nil
}

func (sc *SuperCluster) fill(db *field.Database, tx *Transaction, a *ScAllocAlignment, opts PlaceOptions) (*AllocError, error) {
	next := 0
	take := func() (Container, bool) {
		if opts.Containers > 0 && next >= opts.Containers {
			return Container{}, false
		}
		c := Container{Width: opts.Width, Index: next}
		next++
		return c, true
	}
	noSpace := func() *AllocError {
		return &AllocError{
			Code:  NotEnoughSpace,
			Msg:   fmt.Sprintf("supercluster %d needs more than %d containers of %d bits", sc.Uid, opts.Containers, opts.Width),
			Lists: sc.lists,
		}
	}

	inList := make(map[field.FieldSlice]bool)
	for _, l := range sc.lists {
		c, ok := take()
		if !ok {
			return noSpace(), nil
		}
		for _, s := range l.Slices {
			inList[s] = true
			start, _ := a.Start(sc.owner[s].id)
			if err := tx.Assign(Placement{Slice: s, Container: c, Lo: start}); err != nil {
				return &AllocError{Code: ErrUnknown, Msg: err.Error(), Lists: []*SliceList{l}}, nil
			}
		}
	}
	for _, ac := range sc.AlignedClusters() {
		starts, err := ac.ValidContainerStart(db, opts.Width)
		if err != nil {
			return nil, err
		}
		if starts.Empty() {
			return &AllocError{Code: NoValidScAllocAlignment, Msg: fmt.Sprintf("aligned cluster %d has no valid start", ac.id)}, nil
		}
		start, pinned := a.Start(ac.id)
		if !pinned {
			start = starts.Bits()[0]
		}
		for _, s := range ac.slices {
			if inList[s] {
				continue
			}
			c, ok := take()
			if !ok {
				return noSpace(), nil
			}
			if err := tx.Assign(Placement{Slice: s, Container: c, Lo: start}); err != nil {
				return &AllocError{Code: ErrUnknown, Msg: err.Error()}, nil
			}
		}
	}
	return nil, nil
}

// Describe renders placements one per line for reports.
func Describe(db *field.Database, ps []Placement) string {
	var b strings.Builder
	for _, p := range ps {
		fmt.Fprintf(&b, "%s%s <- %s\n", p.Container, p.Bits(), db.SliceString(p.Slice))
	}
	return b.String()
}
