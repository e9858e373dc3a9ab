// Package mmfile maps program and dump files read-only into memory.
package mmfile

// Mapping is a read-only view of a whole file.
type Mapping struct {
	data   []byte
	unmap  func([]byte) error
	closed bool
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Len returns the file size in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Close releases the mapping. Closing twice is a no-op.
func (m *Mapping) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	data := m.data
	m.data = nil
	if m.unmap == nil || len(data) == 0 {
		return nil
	}
	return m.unmap(data)
}

// Read maps path, copies its contents and unmaps it again.
func Read(path string) ([]byte, error) {
	m, err := Map(path)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), m.Bytes()...)
	if err := m.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
