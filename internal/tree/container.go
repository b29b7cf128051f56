package tree

import (
	"fmt"

	"go.uber.org/zap"

	"proxytree/internal/extgraph"
	"proxytree/internal/extract"
	"proxytree/internal/storage"
)

// DefaultMaxExtensionDepth bounds extension-on-extension nesting when Deps
// does not override it.
const DefaultMaxExtensionDepth = 10

// Deps are the external collaborators of one tree, owned by the root and
// passed down at construction time.
type Deps struct {
	// Graph resolves locators to live handles.
	Graph extgraph.Graph
	// Extractor materializes extension behavior from source artifacts.
	Extractor extract.Extractor
	// Store persists the metadata mirror. Defaults to an in-memory store.
	Store storage.Adapter
	// Log receives structural and reconciliation events. Defaults to a nop
	// logger.
	Log *zap.Logger
	// MaxExtensionDepth bounds extension nesting. Defaults to
	// DefaultMaxExtensionDepth.
	MaxExtensionDepth int
}

// Container is a composite node: child containers, bound leaves ("ops"),
// and extensions, all sharing one name namespace.
type Container struct {
	name   string
	path   string
	parent *Container
	isRoot bool
	state  State

	children *omap[*Container]
	ops      *omap[*Leaf]
	exts     *omap[*Extension]

	// patch is set when this container is a state-preserving subclass
	// replacement; its behavior object answers Attr.
	patch *Patch

	// deps is set on the root only; every other node walks up.
	deps *Deps
}

// Patch records a monkey-patch applied to a container: the class it was
// replaced with and the materialized behavior instance.
type Patch struct {
	ClassName string
	Source    string
	Behavior  extract.Executable
}

// NewRoot builds the root container, applying defaults and hydrating any
// persisted tree from the store. Hydration failures on single branches are
// logged and skipped; only a store read failure is fatal.
func NewRoot(deps Deps) (*Container, error) {
	if deps.Graph == nil {
		return nil, fmt.Errorf("%w: a graph is required", ErrInvalidOperation)
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("%w: an extractor is required", ErrInvalidOperation)
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemoryAdapter()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.MaxExtensionDepth <= 0 {
		deps.MaxExtensionDepth = DefaultMaxExtensionDepth
	}

	root := newContainer("", "", nil)
	root.isRoot = true
	root.deps = &deps
	root.state = Attached

	rec, err := deps.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading persisted tree: %w", err)
	}
	if rec != nil {
		root.hydrate(rec)
	}
	return root, nil
}

func newContainer(name, path string, parent *Container) *Container {
	return &Container{
		name:     name,
		path:     path,
		parent:   parent,
		children: newOmap[*Container](),
		ops:      newOmap[*Leaf](),
		exts:     newOmap[*Extension](),
	}
}

func newChildContainer(name string, parent *Container) *Container {
	return newContainer(name, joinPath(parent.path, name), parent)
}

// Name returns the container's name, empty for the root.
func (c *Container) Name() string { return c.name }

// Path returns the dot-joined path, empty for the root.
func (c *Container) Path() string { return c.path }

// NodeKind implements Node.
func (c *Container) NodeKind() Kind { return KindContainer }

// State implements Node.
func (c *Container) State() State { return c.state }

// Parent returns the owning container, nil for the root. The link is
// non-owning.
func (c *Container) Parent() *Container { return c.parent }

// IsRoot reports whether this is the tree root.
func (c *Container) IsRoot() bool { return c.isRoot }

// Child looks up a child container.
func (c *Container) Child(name string) (*Container, bool) { return c.children.get(name) }

// Op looks up a bound leaf.
func (c *Container) Op(name string) (*Leaf, bool) { return c.ops.get(name) }

// Ext looks up an extension.
func (c *Container) Ext(name string) (*Extension, bool) { return c.exts.get(name) }

// Get resolves a name against the merged namespace.
func (c *Container) Get(name string) (Node, bool) {
	if child, ok := c.children.get(name); ok {
		return child, true
	}
	if leaf, ok := c.ops.get(name); ok {
		return leaf, true
	}
	if ext, ok := c.exts.get(name); ok {
		return ext, true
	}
	return nil, false
}

// Children returns child container names in insertion order.
func (c *Container) Children() []string { return c.children.keysCopy() }

// Ops returns leaf names in insertion order.
func (c *Container) Ops() []string { return c.ops.keysCopy() }

// Exts returns extension names in insertion order.
func (c *Container) Exts() []string { return c.exts.keysCopy() }

// PatchInfo returns the monkey-patch applied to this container, if any.
func (c *Container) PatchInfo() (*Patch, bool) {
	if c.patch == nil {
		return nil, false
	}
	return c.patch, true
}

// Attr resolves an attribute on the patched behavior object.
func (c *Container) Attr(name string) (any, error) {
	if c.patch == nil || c.patch.Behavior == nil {
		return nil, fmt.Errorf("%w: container %q carries no behavior", ErrUnsupportedOperation, displayPath(c.path))
	}
	return c.patch.Behavior.Attr(name)
}

// Add binds targets under the named child container, creating it when
// absent and inserting when present. The whole call fails fast if any
// target does not validate; in insert mode, targets already bound are
// skipped with a warning. Returns the container itself for chaining.
func (c *Container) Add(name string, targets ...string) (*Container, error) {
	if _, err := c.addNode(name, targets); err != nil {
		return nil, err
	}
	return c, nil
}

// AddNode is Add returning the touched child container instead of self.
func (c *Container) AddNode(name string, targets ...string) (*Container, error) {
	return c.addNode(name, targets)
}

func (c *Container) addNode(name string, targets []string) (*Container, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target is required", ErrInvalidTarget)
	}
	if _, ok := c.ops.get(name); ok {
		return nil, fmt.Errorf("%w: %q already exists as a leaf in %q", ErrNameConflict, name, displayPath(c.path))
	}
	if _, ok := c.exts.get(name); ok {
		return nil, fmt.Errorf("%w: %q already exists as an extension in %q", ErrNameConflict, name, displayPath(c.path))
	}

	root := c.rootContainer()
	log := root.deps.Log

	// Validate every target before mutating anything.
	handles := make([]extgraph.Handle, 0, len(targets))
	for _, target := range targets {
		h, err := root.deps.Graph.Resolve(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, target, err)
		}
		handles = append(handles, h)
	}

	child, exists := c.children.get(name)
	if exists {
		// Insert mode: a target whose name collides with a child container
		// or extension violates the merged namespace.
		for _, h := range handles {
			leafName := h.CurrentName()
			if child.children.has(leafName) {
				return nil, fmt.Errorf("%w: target %q collides with a child container in %q", ErrNameConflict, leafName, displayPath(child.path))
			}
			if child.exts.has(leafName) {
				return nil, fmt.Errorf("%w: target %q collides with an extension in %q", ErrNameConflict, leafName, displayPath(child.path))
			}
		}
	} else {
		child = newChildContainer(name, c)
		c.children.set(name, child)
		child.state = Attached
		log.Info("container created", zap.String("path", child.path))
	}

	added := 0
	for _, h := range handles {
		leafName := h.CurrentName()
		if child.ops.has(leafName) {
			log.Warn("target already bound, skipping",
				zap.String("container", displayPath(child.path)),
				zap.String("target", leafName))
			continue
		}
		leaf := newLeaf(leafName, h, child)
		leaf.state = Attached
		child.ops.set(leafName, leaf)
		added++
	}
	log.Info("targets bound",
		zap.String("container", displayPath(child.path)),
		zap.Int("added", added),
		zap.Int("skipped", len(handles)-added))

	if err := root.persistTree(); err != nil {
		return nil, err
	}
	return child, nil
}

// Remove with no names detaches this container from its parent (the root
// cannot be removed). With names, it removes each named child container,
// leaf, or extension; unknown names log a warning and are skipped.
// Extensions cascade first, then descendants depth-first, then the node
// itself detaches, and the root syncs the store once at the end.
func (c *Container) Remove(names ...string) error {
	root := c.rootContainer()
	log := root.deps.Log

	if len(names) == 0 {
		if c.isRoot || c.parent == nil {
			return fmt.Errorf("%w: cannot remove the root container", ErrInvalidOperation)
		}
		parent := c.parent
		c.detach()
		parent.children.delete(c.name)
		log.Info("container removed", zap.String("path", c.path))
		return root.persistTree()
	}

	for _, name := range names {
		if child, ok := c.children.get(name); ok {
			child.detach()
			c.children.delete(name)
			log.Info("container removed", zap.String("path", child.path))
			continue
		}
		if leaf, ok := c.ops.get(name); ok {
			leaf.detachLeaf()
			c.ops.delete(name)
			log.Info("leaf removed", zap.String("path", leaf.path))
			continue
		}
		if ext, ok := c.exts.get(name); ok {
			ext.detach()
			c.exts.delete(name)
			log.Info("extension removed", zap.String("name", name), zap.String("holder", displayPath(c.path)))
			continue
		}
		log.Warn("nothing to remove",
			zap.String("name", name),
			zap.String("container", displayPath(c.path)))
	}
	return root.persistTree()
}

// detach cascades removal: extensions first, then leaves, then child
// containers depth-first.
func (c *Container) detach() {
	for _, k := range c.exts.keysCopy() {
		if ext, ok := c.exts.get(k); ok {
			ext.detach()
			c.exts.delete(k)
		}
	}
	for _, k := range c.ops.keysCopy() {
		if leaf, ok := c.ops.get(k); ok {
			leaf.detachLeaf()
			c.ops.delete(k)
		}
	}
	for _, k := range c.children.keysCopy() {
		if child, ok := c.children.get(k); ok {
			child.detach()
			c.children.delete(k)
		}
	}
	c.state = Removed
}

// Clear drops every child, leaf, and extension and persists the empty
// mirror. Root only.
func (c *Container) Clear() error {
	if !c.isRoot {
		return fmt.Errorf("%w: clear is a root operation", ErrInvalidOperation)
	}
	for _, k := range c.exts.keysCopy() {
		if ext, ok := c.exts.get(k); ok {
			ext.detach()
			c.exts.delete(k)
		}
	}
	for _, k := range c.ops.keysCopy() {
		if leaf, ok := c.ops.get(k); ok {
			leaf.detachLeaf()
			c.ops.delete(k)
		}
	}
	for _, k := range c.children.keysCopy() {
		if child, ok := c.children.get(k); ok {
			child.detach()
			c.children.delete(k)
		}
	}
	c.deps.Log.Info("tree cleared")
	return c.persistTree()
}

func (c *Container) rootContainer() *Container {
	cur := c
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

func (c *Container) extensionMap() *omap[*Extension] { return c.exts }

func (c *Container) extensionDepth() int { return 0 }

func (c *Container) ancestorExtensions() []*Extension { return nil }

// persistTree snapshots the whole tree and writes it through the store.
// Failures are logged and re-raised: the mirror can no longer be trusted.
func (c *Container) persistTree() error {
	root := c.rootContainer()
	rec := root.buildRecord()
	if err := root.deps.Store.Save(rec); err != nil {
		root.deps.Log.Error("storage sync failed", zap.Error(err))
		return fmt.Errorf("persisting tree: %w", err)
	}
	return nil
}
