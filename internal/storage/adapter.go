package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrIO marks a failed store read or write. Writes failing mid-operation are
// fatal to the caller: the in-memory tree and the mirror can no longer be
// guaranteed consistent.
var ErrIO = errors.New("storage: i/o failure")

// Adapter reads and writes the nested metadata mapping. One adapter handle
// is owned by the tree root and passed down at construction time.
type Adapter interface {
	// Load returns the persisted record, or nil when nothing has been
	// stored yet.
	Load() (*ContainerRecord, error)
	// Save replaces the persisted record with a snapshot.
	Save(rec *ContainerRecord) error
}

// Clone deep-copies a record through JSON. Adapters hand out clones so
// callers cannot mutate the stored mirror in place.
func Clone(rec *ContainerRecord) (*ContainerRecord, error) {
	if rec == nil {
		return nil, nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding record: %v", ErrIO, err)
	}
	out := &ContainerRecord{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("%w: decoding record: %v", ErrIO, err)
	}
	return out, nil
}
