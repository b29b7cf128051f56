// Package storage persists the proxy tree's metadata mirror. Records carry
// locators, opaque handle references, and extension metadata only — never
// materialized behavior objects and never live handles.
package storage

import "time"

// ContainerRecord mirrors one container: child containers, bound leaves
// ("ops"), and extensions. The *Order slices preserve insertion order across
// a JSON round-trip (Go maps do not); loaders fall back to sorted keys when
// they are absent.
type ContainerRecord struct {
	Children   map[string]*ContainerRecord `json:"children"`
	Ops        map[string]*OpRecord        `json:"ops"`
	Extensions map[string]*ExtensionRecord `json:"extensions"`

	ChildOrder []string `json:"childOrder,omitempty"`
	OpOrder    []string `json:"opOrder,omitempty"`
	ExtOrder   []string `json:"extOrder,omitempty"`

	MonkeyPatch *PatchRecord `json:"monkeyPatch,omitempty"`
}

// NewContainerRecord returns an empty record with all maps allocated.
func NewContainerRecord() *ContainerRecord {
	return &ContainerRecord{
		Children:   map[string]*ContainerRecord{},
		Ops:        map[string]*OpRecord{},
		Extensions: map[string]*ExtensionRecord{},
	}
}

// OpRecord mirrors one leaf: its locator, the opaque ID of the last live
// handle (rename recovery across restarts), and its extensions.
type OpRecord struct {
	Locator    string                      `json:"locator"`
	Handle     string                      `json:"handle,omitempty"`
	Extensions map[string]*ExtensionRecord `json:"extensions,omitempty"`
	ExtOrder   []string                    `json:"extOrder,omitempty"`
}

// ExtensionRecord is the persisted metadata of one extension. The
// materialized behavior object is deliberately absent: refresh re-extracts
// it from the source every time.
type ExtensionRecord struct {
	ClassName      string    `json:"className,omitempty"`
	FuncName       string    `json:"funcName,omitempty"`
	Source         string    `json:"sourceLocator"`
	Args           []any     `json:"args,omitempty"`
	InvokeOnLoad   bool      `json:"invokeOnLoad,omitempty"`
	AllowOverwrite bool      `json:"allowOverwrite,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	Extensions map[string]*ExtensionRecord `json:"extensions,omitempty"`
	ExtOrder   []string                    `json:"extOrder,omitempty"`
}

// PatchRecord remembers a state-preserving subclass replacement so it can be
// re-applied when the tree is loaded.
type PatchRecord struct {
	ClassName string `json:"className"`
	Source    string `json:"sourceLocator"`
}
