package ir

import "github.com/joshuapare/phvkit/phv/field"

// StackEntry is the collected geometry of one header stack.
type StackEntry struct {
	Name    string `json:"name" yaml:"name"`
	Size    int    `json:"size" yaml:"size"`
	MaxPush int    `json:"maxpush" yaml:"maxpush"`
	MaxPop  int    `json:"maxpop" yaml:"maxpop"`

	// InThread reports whether the stack is visible in ingress and egress.
	InThread [field.NumGress]bool `json:"in_thread" yaml:"in_thread"`
}

// ValidWidth is the width of the stack validity word: the push overlay,
// one bit per element, then the pop overlay.
func (e *StackEntry) ValidWidth() int {
	return e.MaxPush + e.Size + e.MaxPop
}

// ValidRange is the range of the validity word holding the element bits.
func (e *StackEntry) ValidRange() field.BitRange {
	return field.StartLen(e.MaxPush, e.Size)
}

// HeaderStackInfo maps stack names to their geometry, in declaration order.
type HeaderStackInfo struct {
	order   []string
	entries map[string]*StackEntry
}

// NewHeaderStackInfo creates an empty collection.
func NewHeaderStackInfo() *HeaderStackInfo {
	return &HeaderStackInfo{entries: make(map[string]*StackEntry)}
}

// Add inserts e, replacing any entry with the same name.
func (h *HeaderStackInfo) Add(e *StackEntry) {
	if _, ok := h.entries[e.Name]; !ok {
		h.order = append(h.order, e.Name)
	}
	h.entries[e.Name] = e
}

// Get returns the named entry.
func (h *HeaderStackInfo) Get(name string) (*StackEntry, bool) {
	if h == nil {
		return nil, false
	}
	e, ok := h.entries[name]
	return e, ok
}

// Delete removes the named entry.
func (h *HeaderStackInfo) Delete(name string) {
	if _, ok := h.entries[name]; !ok {
		return
	}
	delete(h.entries, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i:i], h.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (h *HeaderStackInfo) Len() int {
	if h == nil {
		return 0
	}
	return len(h.order)
}

// Entries returns the entries in declaration order.
func (h *HeaderStackInfo) Entries() []*StackEntry {
	if h == nil {
		return nil
	}
	out := make([]*StackEntry, 0, len(h.order))
	for _, n := range h.order {
		out = append(out, h.entries[n])
	}
	return out
}
