package tree

import (
	"sort"

	"go.uber.org/zap"

	"proxytree/internal/storage"
)

// hydrate rebuilds the in-memory tree from a persisted record. Branches whose
// external reference or source no longer resolves are skipped (leaves) or
// restored stale (extensions) with a warning; a bad branch never aborts the
// rest of the load.
func (c *Container) hydrate(rec *storage.ContainerRecord) {
	c.hydrateContainer(rec)
}

func (c *Container) hydrateContainer(rec *storage.ContainerRecord) {
	root := c.rootContainer()
	deps := root.deps
	log := deps.Log

	for _, name := range orderedKeys(rec.ChildOrder, rec.Children) {
		childRec := rec.Children[name]
		child := newChildContainer(name, c)
		child.state = Attached
		if childRec.MonkeyPatch != nil {
			child.restorePatch(childRec.MonkeyPatch)
		}
		child.hydrateContainer(childRec)
		c.children.set(name, child)
	}

	for _, name := range orderedKeys(rec.OpOrder, rec.Ops) {
		opRec := rec.Ops[name]
		h, err := deps.Graph.Resolve(opRec.Locator)
		if err != nil && opRec.Handle != "" {
			h, err = deps.Graph.Find(opRec.Handle)
		}
		if err != nil || !h.Valid() {
			log.Warn("persisted reference no longer resolves, skipping leaf",
				zap.String("container", displayPath(c.path)),
				zap.String("name", name),
				zap.String("locator", opRec.Locator))
			continue
		}
		leaf := newLeaf(name, h, c)
		leaf.state = Attached
		hydrateExtensions(leaf, opRec.Extensions, opRec.ExtOrder)
		c.ops.set(name, leaf)
	}

	// Re-key renamed leaves only after every sibling is restored, so a
	// collision keeps the persisted key instead of clobbering a live leaf.
	for _, k := range c.ops.keysCopy() {
		leaf, ok := c.ops.get(k)
		if !ok {
			continue
		}
		current := leaf.handle.CurrentName()
		if current == k {
			continue
		}
		if c.ops.rename(k, current) {
			leaf.name = current
			leaf.path = joinPath(c.path, current)
		} else {
			log.Warn("restored name already taken, keeping persisted key",
				zap.String("container", displayPath(c.path)),
				zap.String("from", k),
				zap.String("to", current))
		}
	}

	hydrateExtensions(c, rec.Extensions, rec.ExtOrder)
}

// restorePatch re-applies a persisted monkey-patch. Failure leaves the
// container unpatched with its structure intact.
func (c *Container) restorePatch(rec *storage.PatchRecord) {
	root := c.rootContainer()
	log := root.deps.Log

	exec, err := root.deps.Extractor.Resolve(Spec{ClassName: rec.ClassName}, rec.Source)
	if err != nil {
		log.Warn("persisted patch no longer extracts, restoring unpatched",
			zap.String("path", c.path),
			zap.String("class", rec.ClassName),
			zap.Error(err))
		return
	}
	behavior, err := materializeBehavior(exec)
	if err != nil {
		log.Warn("persisted patch class no longer instantiates, restoring unpatched",
			zap.String("path", c.path),
			zap.String("class", rec.ClassName),
			zap.Error(err))
		return
	}
	c.patch = &Patch{ClassName: rec.ClassName, Source: rec.Source, Behavior: behavior}
}

func hydrateExtensions(h holder, recs map[string]*storage.ExtensionRecord, order []string) {
	for _, name := range orderedKeys(order, recs) {
		if ext := hydrateExtension(h, name, recs[name]); ext != nil {
			h.extensionMap().set(name, ext)
		}
	}
}

// hydrateExtension restores one extension from its record. When the source
// no longer extracts, the extension comes back stale: its metadata survives
// so a later refresh can recover it.
func hydrateExtension(h holder, name string, rec *storage.ExtensionRecord) *Extension {
	root := h.rootContainer()
	deps := root.deps
	log := deps.Log

	ext := &Extension{
		name:  name,
		owner: h,
		meta: Metadata{
			ClassName:      rec.ClassName,
			FuncName:       rec.FuncName,
			Source:         rec.Source,
			Args:           rec.Args,
			InvokeOnLoad:   rec.InvokeOnLoad,
			AllowOverwrite: rec.AllowOverwrite,
			CreatedAt:      rec.CreatedAt,
		},
		exts: newOmap[*Extension](),
	}
	if hnd, err := deps.Graph.Resolve(rec.Source); err == nil {
		ext.handle = hnd
	}

	exec, err := deps.Extractor.Resolve(ext.meta.spec(), ext.meta.Source)
	if err != nil {
		log.Warn("persisted extension no longer extracts, restoring stale",
			zap.String("extension", ext.Path()),
			zap.String("source", ext.meta.Source),
			zap.Error(err))
		ext.state = Stale
	} else {
		ext.exec = exec
		ext.state = Attached
		if ext.meta.InvokeOnLoad {
			if ierr := ext.invokeOnLoad(); ierr != nil {
				log.Warn("persisted extension re-invocation failed",
					zap.String("extension", ext.Path()),
					zap.Error(ierr))
				ext.state = Stale
			}
		}
	}

	hydrateExtensions(ext, rec.Extensions, rec.ExtOrder)
	return ext
}

// orderedKeys yields the persisted insertion order, appending any keys the
// order slice misses (older snapshots) in sorted order.
func orderedKeys[V any](order []string, m map[string]V) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok {
			if _, dup := seen[k]; !dup {
				out = append(out, k)
				seen[k] = struct{}{}
			}
		}
	}
	var rest []string
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
