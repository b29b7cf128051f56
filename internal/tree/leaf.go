package tree

import (
	"fmt"

	"go.uber.org/zap"

	"proxytree/internal/extgraph"
)

// Leaf is a terminal node bound to one external reference. It keeps the
// locator it was bound with plus the last live handle; the handle is the
// rename-recovery path when the locator stops resolving.
type Leaf struct {
	name   string
	path   string
	parent *Container
	state  State

	locator string
	handle  extgraph.Handle

	exts *omap[*Extension]
}

func newLeaf(name string, h extgraph.Handle, parent *Container) *Leaf {
	return &Leaf{
		name:    name,
		path:    joinPath(parent.path, name),
		parent:  parent,
		locator: h.Locator(),
		handle:  h,
		exts:    newOmap[*Extension](),
	}
}

// Name implements Node.
func (l *Leaf) Name() string { return l.name }

// Path implements Node.
func (l *Leaf) Path() string { return l.path }

// NodeKind implements Node.
func (l *Leaf) NodeKind() Kind { return KindLeaf }

// State implements Node.
func (l *Leaf) State() State { return l.state }

// Parent returns the owning container. Non-owning link.
func (l *Leaf) Parent() *Container { return l.parent }

// Locator returns the locator the leaf is currently bound to.
func (l *Leaf) Locator() string { return l.locator }

// Handle returns the last live handle, which may be nil before the first
// successful resolution.
func (l *Leaf) Handle() extgraph.Handle { return l.handle }

// Ext looks up an extension on this leaf.
func (l *Leaf) Ext(name string) (*Extension, bool) { return l.exts.get(name) }

// Exts returns extension names in insertion order.
func (l *Leaf) Exts() []string { return l.exts.keysCopy() }

// Extend attaches behavior to this leaf, returning the leaf for chaining.
func (l *Leaf) Extend(name string, spec Spec, source string, opts *ExtendOptions) (*Leaf, error) {
	if _, err := extendHolder(l, name, spec, source, opts); err != nil {
		return nil, err
	}
	return l, nil
}

// ExtendNode is Extend returning the new extension instead of self.
func (l *Leaf) ExtendNode(name string, spec Spec, source string, opts *ExtendOptions) (*Extension, error) {
	return extendHolder(l, name, spec, source, opts)
}

// Remove detaches this leaf from its parent container, cascading its
// extensions first.
func (l *Leaf) Remove() error {
	if l.parent == nil {
		return fmt.Errorf("%w: leaf %q has no parent", ErrInvalidOperation, l.name)
	}
	parent := l.parent
	root := parent.rootContainer()
	l.detachLeaf()
	parent.ops.delete(l.name)
	root.deps.Log.Info("leaf removed", zap.String("path", l.path))
	return root.persistTree()
}

// Refresh re-validates the bound reference (re-keying on rename, dropping
// on deletion) and re-materializes this leaf's extensions only.
func (l *Leaf) Refresh() error {
	if l.parent == nil {
		return fmt.Errorf("%w: leaf %q has no parent", ErrInvalidOperation, l.name)
	}
	parent := l.parent
	parent.refreshLeaf(l.name, l)
	return parent.rootContainer().persistTree()
}

func (l *Leaf) detachLeaf() {
	for _, k := range l.exts.keysCopy() {
		if ext, ok := l.exts.get(k); ok {
			ext.detach()
			l.exts.delete(k)
		}
	}
	l.state = Removed
}

func (l *Leaf) rootContainer() *Container { return l.parent.rootContainer() }

func (l *Leaf) extensionMap() *omap[*Extension] { return l.exts }

func (l *Leaf) extensionDepth() int { return 0 }

func (l *Leaf) ancestorExtensions() []*Extension { return nil }
