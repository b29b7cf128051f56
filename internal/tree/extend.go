package tree

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"proxytree/internal/extract"
)

// Spec names the symbol an extension materializes; exactly one of ClassName
// and FuncName must be set.
type Spec = extract.Spec

// ExtendOptions tune an Extend call. The zero value is the default:
// register only, never overwrite.
type ExtendOptions struct {
	// Args are the invocation arguments used by InvokeOnLoad and by every
	// re-invocation at refresh time.
	Args []any
	// InvokeOnLoad invokes the behavior once immediately after extraction.
	InvokeOnLoad bool
	// AllowOverwrite permits replacing an existing extension of the same
	// name, or monkey-patching an existing child container.
	AllowOverwrite bool
}

// Extend attaches behavior under name, resolving spec against source.
// When name is an existing child container and AllowOverwrite is set, the
// call becomes a monkey-patch (state-preserving subclass replacement).
// Returns the container itself for chaining.
func (c *Container) Extend(name string, spec Spec, source string, opts *ExtendOptions) (*Container, error) {
	if _, err := c.extendAny(name, spec, source, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// ExtendNode is Extend returning the touched node: the new *Extension, or
// the replacement *Container when the call monkey-patched.
func (c *Container) ExtendNode(name string, spec Spec, source string, opts *ExtendOptions) (Node, error) {
	return c.extendAny(name, spec, source, opts)
}

func (c *Container) extendAny(name string, spec Spec, source string, opts *ExtendOptions) (Node, error) {
	o := ExtendOptions{}
	if opts != nil {
		o = *opts
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if name == "" {
		name = spec.Symbol()
	}

	// Merged-namespace collisions with structural nodes resolve here;
	// extension-name collisions resolve in extendHolder.
	if _, ok := c.ops.get(name); ok {
		if o.AllowOverwrite {
			return nil, fmt.Errorf("%w: monkey-patching a leaf target is not supported", ErrInvalidOperation)
		}
		return nil, fmt.Errorf("%w: %q already exists as a leaf in %q; monkey-patch applies to containers only", ErrNameConflict, name, displayPath(c.path))
	}
	if _, ok := c.children.get(name); ok {
		if !o.AllowOverwrite {
			return nil, fmt.Errorf("%w: %q already exists as a container in %q; set AllowOverwrite to monkey-patch it", ErrNameConflict, name, displayPath(c.path))
		}
		return c.applyPatch(name, spec, source, o)
	}
	return extendHolder(c, name, spec, source, &o)
}

// extendHolder is the shared extend path for containers, leaves, and
// extensions once structural collisions are ruled out.
func extendHolder(h holder, name string, spec Spec, source string, opts *ExtendOptions) (*Extension, error) {
	o := ExtendOptions{}
	if opts != nil {
		o = *opts
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if name == "" {
		name = spec.Symbol()
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	root := h.rootContainer()
	deps := root.deps
	log := deps.Log

	replaced, exists := h.extensionMap().get(name)
	if exists && !o.AllowOverwrite {
		return nil, fmt.Errorf("%w: extension %q already exists on %q; set AllowOverwrite to replace it", ErrNameConflict, name, displayPath(h.Path()))
	}

	// Both structural checks run before any mutation.
	depth := h.extensionDepth() + 1
	if depth > deps.MaxExtensionDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds the maximum of %d", ErrDepthExceeded, depth, deps.MaxExtensionDepth)
	}
	for _, anc := range h.ancestorExtensions() {
		if anc.meta.Source == source && anc.meta.spec() == spec {
			return nil, fmt.Errorf("%w: %q from %q is already bound by ancestor %q", ErrCircularExtension, spec.Symbol(), source, anc.Path())
		}
	}

	exec, err := deps.Extractor.Resolve(spec, source)
	if err != nil {
		if errors.Is(err, extract.ErrBadSpec) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	ext := &Extension{
		name:  name,
		owner: h,
		meta: Metadata{
			ClassName:      spec.ClassName,
			FuncName:       spec.FuncName,
			Source:         source,
			Args:           o.Args,
			InvokeOnLoad:   o.InvokeOnLoad,
			AllowOverwrite: o.AllowOverwrite,
			CreatedAt:      time.Now().UTC(),
		},
		exec: exec,
		exts: newOmap[*Extension](),
	}
	if hnd, herr := deps.Graph.Resolve(source); herr == nil {
		ext.handle = hnd
	}
	if o.InvokeOnLoad {
		if err := ext.invokeOnLoad(); err != nil {
			return nil, err
		}
	}

	if exists {
		replaced.detach()
	}
	h.extensionMap().set(name, ext)
	ext.state = Attached

	if err := root.persistTree(); err != nil {
		return nil, err
	}
	log.Info("extension registered",
		zap.String("name", name),
		zap.String("holder", displayPath(h.Path())),
		zap.String("symbol", spec.Symbol()),
		zap.Bool("replaced", exists))
	return ext, nil
}
