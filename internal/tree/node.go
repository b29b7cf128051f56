// Package tree implements the proxy tree and its reconciliation engine: a
// hierarchical namespace mirroring a live external object graph, persisting
// only metadata, and extensible with externally authored behavior at any
// depth.
//
// Containers compose child containers, leaves, and extensions; leaves bind
// one external reference; extensions wrap a materialized behavior object and
// are themselves extensible. Refresh re-binds the whole structure against
// the external graph and re-materializes every extension.
package tree

import (
	"strings"
	"unicode"
)

// Kind discriminates the node types of the tree.
type Kind int

const (
	// KindContainer is a composite node.
	KindContainer Kind = iota
	// KindLeaf is a terminal node bound to one external reference.
	KindLeaf
	// KindExtension is a dynamically attached behavior node.
	KindExtension
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindLeaf:
		return "leaf"
	case KindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// Node is the common surface of containers, leaves, and extensions. Parent
// links are non-owning back-pointers: the tree owns its nodes strictly
// top-down.
type Node interface {
	Name() string
	// Path is the dot-joined segment chain, empty for the root.
	Path() string
	NodeKind() Kind
	State() State
}

// holder is any node that can carry extensions.
type holder interface {
	Node
	extensionMap() *omap[*Extension]
	rootContainer() *Container
	// extensionDepth is the number of extension nodes on the ancestor
	// chain, the holder included.
	extensionDepth() int
	// ancestorExtensions lists extension ancestors, holder included,
	// nearest first.
	ancestorExtensions() []*Extension
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// displayPath renders the root's empty path as "root" for log lines and
// error messages.
func displayPath(path string) string {
	if path == "" {
		return "root"
	}
	return path
}

// reservedNames are operation identifiers that can never be used as node
// names.
var reservedNames = map[string]struct{}{
	"add": {}, "extend": {}, "remove": {}, "refresh": {}, "inspect": {},
	"tree": {}, "clear": {}, "children": {}, "ops": {}, "extensions": {},
	"path": {}, "parent": {}, "root": {},
}

// validateName enforces identifier rules plus the reserved-name set.
func validateName(name string) error {
	if name == "" {
		return errEmptyName()
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return errBadIdentifier(name)
	}
	if _, ok := reservedNames[strings.ToLower(name)]; ok {
		return errReservedName(name)
	}
	return nil
}
