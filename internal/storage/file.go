package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileAdapter persists the record as indented JSON. Writes go through a temp
// file and rename so a crash mid-write cannot truncate the mirror.
type FileAdapter struct {
	path string
}

// NewFileAdapter creates the parent directory and returns an adapter bound
// to path.
func NewFileAdapter(path string) (*FileAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating store directory: %v", ErrIO, err)
	}
	return &FileAdapter{path: path}, nil
}

// Load implements Adapter.
func (f *FileAdapter) Load() (*ContainerRecord, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, f.path, err)
	}
	rec := &ContainerRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrIO, f.path, err)
	}
	return rec, nil
}

// Save implements Adapter.
func (f *FileAdapter) Save(rec *ContainerRecord) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding record: %v", ErrIO, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", ErrIO, f.path, err)
	}
	return nil
}
