package storage

// MemoryAdapter keeps the record in process memory. Default for tests and
// for embedding the engine without persistence.
type MemoryAdapter struct {
	rec *ContainerRecord
	// FailNextSave forces the next Save to return ErrIO; tests use it to
	// exercise the fatal storage-write path.
	FailNextSave bool
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter { return &MemoryAdapter{} }

// Load implements Adapter.
func (m *MemoryAdapter) Load() (*ContainerRecord, error) {
	return Clone(m.rec)
}

// Save implements Adapter.
func (m *MemoryAdapter) Save(rec *ContainerRecord) error {
	if m.FailNextSave {
		m.FailNextSave = false
		return ErrIO
	}
	clone, err := Clone(rec)
	if err != nil {
		return err
	}
	m.rec = clone
	return nil
}
