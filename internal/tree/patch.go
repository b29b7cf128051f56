package tree

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"proxytree/internal/extract"
)

// applyPatch replaces the named child container with a behavior-carrying one,
// migrating children, leaves, and extensions so no attached state is lost.
// The replacement keeps the old container's slot and path; the old container
// is marked Removed once emptied.
func (c *Container) applyPatch(name string, spec Spec, source string, o ExtendOptions) (*Container, error) {
	if !spec.IsClass() {
		return nil, fmt.Errorf("%w: monkey-patching requires a class spec, got func %q", ErrInvalidSpec, spec.FuncName)
	}
	if len(o.Args) > 0 {
		return nil, fmt.Errorf("%w: monkey-patching does not take invocation args", ErrInvalidSpec)
	}
	if o.InvokeOnLoad {
		return nil, fmt.Errorf("%w: monkey-patching does not support invoke-on-load", ErrInvalidSpec)
	}

	root := c.rootContainer()
	deps := root.deps

	exec, err := deps.Extractor.Resolve(spec, source)
	if err != nil {
		if errors.Is(err, extract.ErrBadSpec) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if exec.Kind() != extract.KindClass {
		return nil, fmt.Errorf("%w: %q in %q is not an instantiable class", ErrInvalidSpec, spec.ClassName, source)
	}

	behavior, err := materializeBehavior(exec)
	if err != nil {
		return nil, fmt.Errorf("%w: instantiating patch class %q: %v", ErrInvalidSpec, spec.ClassName, err)
	}

	old, _ := c.children.get(name)
	fresh := newChildContainer(name, c)
	fresh.state = Attached
	fresh.patch = &Patch{ClassName: spec.ClassName, Source: source, Behavior: behavior}
	migrateInto(old, fresh)

	// set keeps the old slot's position in the namespace.
	c.children.set(name, fresh)
	old.state = Removed

	if err := root.persistTree(); err != nil {
		return nil, err
	}
	deps.Log.Info("container patched",
		zap.String("path", fresh.path),
		zap.String("class", spec.ClassName),
		zap.String("source", source))
	return fresh, nil
}

// materializeBehavior turns a class executable into the instance the patched
// container delegates Attr to. Patch classes are always constructed without
// args.
func materializeBehavior(exec extract.Executable) (extract.Executable, error) {
	if inst, ok := exec.(extract.Instantiator); ok {
		return inst.Instantiate()
	}
	v, err := exec.Invoke()
	if err != nil {
		return nil, err
	}
	return extract.Wrap(exec.Symbol(), v), nil
}

// migrateInto moves every child, leaf, and extension from old to fresh,
// re-parenting as it goes. Paths are unchanged: fresh occupies old's slot.
func migrateInto(old, fresh *Container) {
	for _, k := range old.children.keysCopy() {
		if child, ok := old.children.get(k); ok {
			child.parent = fresh
			fresh.children.set(k, child)
			old.children.delete(k)
		}
	}
	for _, k := range old.ops.keysCopy() {
		if leaf, ok := old.ops.get(k); ok {
			leaf.parent = fresh
			fresh.ops.set(k, leaf)
			old.ops.delete(k)
		}
	}
	for _, k := range old.exts.keysCopy() {
		if ext, ok := old.exts.get(k); ok {
			ext.owner = fresh
			fresh.exts.set(k, ext)
			old.exts.delete(k)
		}
	}
}
