package bitvec

// SymMatrix is a dense symmetric boolean matrix over integer ids. Setting
// (i, j) also sets (j, i). The matrix grows on demand.
type SymMatrix struct {
	rows []Bitvec
}

// NewSymMatrix returns a matrix with room for n ids.
func NewSymMatrix(n int) *SymMatrix {
	return &SymMatrix{rows: make([]Bitvec, n)}
}

// Size returns the number of ids the matrix currently covers.
func (m *SymMatrix) Size() int {
	return len(m.rows)
}

func (m *SymMatrix) grow(i int) {
	for len(m.rows) <= i {
		m.rows = append(m.rows, Bitvec{})
	}
}

// Set marks the pair (i, j).
func (m *SymMatrix) Set(i, j int) {
	m.grow(max(i, j))
	m.rows[i].Set(j)
	m.rows[j].Set(i)
}

// Clear unmarks the pair (i, j).
func (m *SymMatrix) Clear(i, j int) {
	if i >= len(m.rows) || j >= len(m.rows) {
		return
	}
	m.rows[i].Clear(j)
	m.rows[j].Clear(i)
}

// Test reports whether the pair (i, j) is marked.
func (m *SymMatrix) Test(i, j int) bool {
	if i < 0 || i >= len(m.rows) {
		return false
	}
	return m.rows[i].Test(j)
}

// Row returns a copy of the ids paired with i.
func (m *SymMatrix) Row(i int) Bitvec {
	if i < 0 || i >= len(m.rows) {
		return Bitvec{}
	}
	return m.rows[i].Clone()
}

// Count returns the number of marked unordered pairs, diagonal included once.
func (m *SymMatrix) Count() int {
	n := 0
	for i, r := range m.rows {
		for _, j := range r.Bits() {
			if j >= i {
				n++
			}
		}
	}
	return n
}

// Reset clears every pair but keeps the capacity.
func (m *SymMatrix) Reset() {
	for i := range m.rows {
		m.rows[i] = Bitvec{}
	}
}

// Clone returns an independent copy of m.
func (m *SymMatrix) Clone() *SymMatrix {
	out := &SymMatrix{rows: make([]Bitvec, len(m.rows))}
	for i, r := range m.rows {
		out.rows[i] = r.Clone()
	}
	return out
}

// Pairs calls fn for each marked pair with i < j in ascending order.
func (m *SymMatrix) Pairs(fn func(i, j int)) {
	for i, r := range m.rows {
		for _, j := range r.Bits() {
			if j > i {
				fn(i, j)
			}
		}
	}
}
