package tree

import (
	"go.uber.org/zap"
)

// Refresh reconciles the whole subtree against the external graph, then
// persists the updated mirror. Branch-level failures (a leaf whose reference
// is gone, an extension whose source no longer extracts) are logged and
// contained to that branch; only the final storage write can fail the call.
func (c *Container) Refresh() error {
	c.refresh()
	return c.rootContainer().persistTree()
}

// refresh walks depth-first: leaves first, then this container's extensions,
// then children.
func (c *Container) refresh() {
	c.refreshOps()
	refreshExtensions(c.exts)
	for _, k := range c.children.keysCopy() {
		if child, ok := c.children.get(k); ok {
			child.refresh()
		}
	}
}

// refreshOps re-validates every bound leaf. Iteration is over a key snapshot
// because refreshLeaf may re-key or drop entries.
func (c *Container) refreshOps() {
	for _, k := range c.ops.keysCopy() {
		if leaf, ok := c.ops.get(k); ok {
			c.refreshLeaf(k, leaf)
		}
	}
}

// refreshLeaf re-resolves one leaf's reference. The locator is tried first;
// when it has gone stale the retained handle recovers renames. A reference
// that cannot be recovered at all drops the leaf, extensions cascading.
func (c *Container) refreshLeaf(key string, l *Leaf) {
	root := c.rootContainer()
	log := root.deps.Log

	h, err := root.deps.Graph.Resolve(l.locator)
	if err != nil {
		h = nil
		if l.handle != nil && l.handle.Valid() {
			h = l.handle
		} else if l.handle != nil {
			if found, ferr := root.deps.Graph.Find(l.handle.ID()); ferr == nil {
				h = found
			}
		}
	}
	if h == nil || !h.Valid() {
		log.Warn("reference lost, dropping leaf",
			zap.String("path", l.path),
			zap.String("locator", l.locator))
		l.detachLeaf()
		c.ops.delete(key)
		return
	}

	l.handle = h
	l.locator = h.Locator()
	l.state = Attached

	if current := h.CurrentName(); current != key {
		if c.ops.rename(key, current) {
			log.Info("leaf re-keyed after rename",
				zap.String("container", displayPath(c.path)),
				zap.String("from", key),
				zap.String("to", current))
			l.name = current
			l.path = joinPath(c.path, current)
		} else {
			log.Warn("rename target already taken, keeping old key",
				zap.String("container", displayPath(c.path)),
				zap.String("from", key),
				zap.String("to", current))
		}
	}

	refreshExtensions(l.exts)
}

func refreshExtensions(m *omap[*Extension]) {
	for _, k := range m.keysCopy() {
		if ext, ok := m.get(k); ok {
			ext.rematerialize()
		}
	}
}

// rematerialize re-extracts this extension's behavior from its source,
// following the retained source handle if the source moved. Extraction
// failure marks the extension stale but keeps its metadata and last good
// behavior; nested extensions refresh regardless.
func (e *Extension) rematerialize() {
	root := e.rootContainer()
	deps := root.deps
	log := deps.Log

	if h, err := deps.Graph.Resolve(e.meta.Source); err == nil {
		e.handle = h
	} else if e.handle != nil {
		if found, ferr := deps.Graph.Find(e.handle.ID()); ferr == nil && found.Valid() {
			log.Info("extension source moved",
				zap.String("extension", e.Path()),
				zap.String("from", e.meta.Source),
				zap.String("to", found.Locator()))
			e.handle = found
			e.meta.Source = found.Locator()
		}
	}

	exec, err := deps.Extractor.Resolve(e.meta.spec(), e.meta.Source)
	if err != nil {
		log.Warn("extension went stale",
			zap.String("extension", e.Path()),
			zap.String("source", e.meta.Source),
			zap.Error(err))
		e.state = Stale
	} else {
		e.exec = exec
		e.state = Attached
		if e.meta.InvokeOnLoad {
			if err := e.invokeOnLoad(); err != nil {
				log.Warn("extension re-invocation failed",
					zap.String("extension", e.Path()),
					zap.Error(err))
				e.state = Stale
			}
		}
	}

	refreshExtensions(e.exts)
}
