package tree

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"proxytree/internal/extgraph"
	"proxytree/internal/extract"
)

// Metadata is the persisted description of one extension. It is all the
// engine keeps across restarts; the behavior object is re-extracted from
// Source on every refresh.
type Metadata struct {
	ClassName      string
	FuncName       string
	Source         string
	Args           []any
	InvokeOnLoad   bool
	AllowOverwrite bool
	CreatedAt      time.Time
}

func (m Metadata) spec() Spec {
	return Spec{ClassName: m.ClassName, FuncName: m.FuncName}
}

// Extension wraps one materialized behavior object. Invocation and
// attribute access delegate to the behavior; the metadata stays separately
// introspectable and is never shadowed by delegation. Extensions are
// themselves extensible, under the shared depth and cycle checks.
type Extension struct {
	name  string
	owner holder
	state State

	meta   Metadata
	exec   extract.Executable
	handle extgraph.Handle // retained source handle, rename recovery

	exts *omap[*Extension]
}

// Name implements Node.
func (e *Extension) Name() string { return e.name }

// Path implements Node.
func (e *Extension) Path() string { return joinPath(e.owner.Path(), e.name) }

// NodeKind implements Node.
func (e *Extension) NodeKind() Kind { return KindExtension }

// State implements Node.
func (e *Extension) State() State { return e.state }

// Owner returns the node this extension is attached to. Non-owning link.
func (e *Extension) Owner() Node { return e.owner }

// Metadata returns the extension's persisted metadata.
func (e *Extension) Metadata() Metadata { return e.meta }

// Invoke calls the wrapped behavior. A stale extension (unresolved at the
// last refresh) refuses with ErrUnresolvedReference.
func (e *Extension) Invoke(args ...any) (any, error) {
	if e.exec == nil {
		return nil, fmt.Errorf("%w: extension %q has no materialized behavior", ErrUnresolvedReference, e.Path())
	}
	return e.exec.Invoke(args...)
}

// Attr resolves an attribute on the wrapped behavior.
func (e *Extension) Attr(name string) (any, error) {
	if e.exec == nil {
		return nil, fmt.Errorf("%w: extension %q has no materialized behavior", ErrUnresolvedReference, e.Path())
	}
	return e.exec.Attr(name)
}

// Behavior exposes the materialized executable, nil while stale.
func (e *Extension) Behavior() extract.Executable { return e.exec }

// Ext looks up a nested extension.
func (e *Extension) Ext(name string) (*Extension, bool) { return e.exts.get(name) }

// Exts returns nested extension names in insertion order.
func (e *Extension) Exts() []string { return e.exts.keysCopy() }

// Extend nests an extension on this extension, returning self for chaining.
func (e *Extension) Extend(name string, spec Spec, source string, opts *ExtendOptions) (*Extension, error) {
	if _, err := extendHolder(e, name, spec, source, opts); err != nil {
		return nil, err
	}
	return e, nil
}

// ExtendNode is Extend returning the nested extension instead of self.
func (e *Extension) ExtendNode(name string, spec Spec, source string, opts *ExtendOptions) (*Extension, error) {
	return extendHolder(e, name, spec, source, opts)
}

// Remove detaches this extension from its owner, cascading nested
// extensions post-order first.
func (e *Extension) Remove() error {
	root := e.rootContainer()
	e.detach()
	e.owner.extensionMap().delete(e.name)
	root.deps.Log.Info("extension removed",
		zap.String("name", e.name),
		zap.String("holder", displayPath(e.owner.Path())))
	return root.persistTree()
}

// Refresh re-materializes this extension and its nested extensions, then
// persists.
func (e *Extension) Refresh() error {
	e.rematerialize()
	return e.rootContainer().persistTree()
}

func (e *Extension) detach() {
	for _, k := range e.exts.keysCopy() {
		if nested, ok := e.exts.get(k); ok {
			nested.detach()
			e.exts.delete(k)
		}
	}
	e.state = Removed
}

// invokeOnLoad runs the behavior once with the stored args. Class specs
// materialize an instance and the extension wraps the instance from then
// on; func specs are invoked and keep wrapping the function.
func (e *Extension) invokeOnLoad() error {
	if e.meta.ClassName != "" {
		if inst, ok := e.exec.(extract.Instantiator); ok {
			wrapped, err := inst.Instantiate(e.meta.Args...)
			if err != nil {
				return fmt.Errorf("%w: instantiating %q: %v", ErrInvalidSpec, e.name, err)
			}
			e.exec = wrapped
			return nil
		}
		inst, err := e.exec.Invoke(e.meta.Args...)
		if err != nil {
			return fmt.Errorf("%w: instantiating %q: %v", ErrInvalidSpec, e.name, err)
		}
		e.exec = extract.Wrap(e.meta.ClassName, inst)
		return nil
	}
	if _, err := e.exec.Invoke(e.meta.Args...); err != nil {
		return fmt.Errorf("%w: invoking %q on load: %v", ErrInvalidSpec, e.name, err)
	}
	return nil
}

func (e *Extension) rootContainer() *Container { return e.owner.rootContainer() }

func (e *Extension) extensionMap() *omap[*Extension] { return e.exts }

func (e *Extension) extensionDepth() int { return e.owner.extensionDepth() + 1 }

func (e *Extension) ancestorExtensions() []*Extension {
	return append([]*Extension{e}, e.owner.ancestorExtensions()...)
}
