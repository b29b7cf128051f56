// Package extgraph defines the contract against the live external object
// graph that the proxy tree mirrors. The engine never owns graph objects:
// they can be renamed, moved, or deleted out-of-band, and the tree finds out
// only at refresh time.
package extgraph

import "errors"

// ErrNotFound is returned when a locator or handle ID resolves to nothing.
var ErrNotFound = errors.New("extgraph: reference not found")

// Handle is a live view onto one external object. Handles stay usable across
// renames (CurrentName and Locator track the object), and report Valid()
// false once the object is deleted.
type Handle interface {
	// ID is the stable identity of the object, unchanged by renames.
	ID() string
	// Locator is the object's current canonical locator.
	Locator() string
	// CurrentName is the object's current short name (last locator segment).
	CurrentName() string
	// Valid reports whether the object still exists.
	Valid() bool
	// Text returns the object's source payload, if it carries one.
	Text() string
}

// Graph resolves locators and handle IDs to live handles.
type Graph interface {
	// Resolve looks up an object by its current locator.
	Resolve(locator string) (Handle, error)
	// Find looks up an object by its stable handle ID. This is the recovery
	// path for persisted opaque references whose locator has gone stale.
	Find(id string) (Handle, error)
}
