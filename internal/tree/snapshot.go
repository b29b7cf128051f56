package tree

import (
	"encoding/json"
	"fmt"
	"strings"

	"proxytree/internal/storage"
)

// buildRecord snapshots this container's subtree into the persisted form:
// locators, opaque handle IDs, and extension metadata only.
func (c *Container) buildRecord() *storage.ContainerRecord {
	rec := storage.NewContainerRecord()
	for _, k := range c.children.keysCopy() {
		if child, ok := c.children.get(k); ok {
			rec.Children[k] = child.buildRecord()
			rec.ChildOrder = append(rec.ChildOrder, k)
		}
	}
	for _, k := range c.ops.keysCopy() {
		if leaf, ok := c.ops.get(k); ok {
			rec.Ops[k] = leaf.buildRecord()
			rec.OpOrder = append(rec.OpOrder, k)
		}
	}
	rec.Extensions, rec.ExtOrder = extensionRecords(c.exts)
	if c.patch != nil {
		rec.MonkeyPatch = &storage.PatchRecord{
			ClassName: c.patch.ClassName,
			Source:    c.patch.Source,
		}
	}
	return rec
}

func (l *Leaf) buildRecord() *storage.OpRecord {
	rec := &storage.OpRecord{Locator: l.locator}
	if l.handle != nil {
		rec.Handle = l.handle.ID()
	}
	rec.Extensions, rec.ExtOrder = extensionRecords(l.exts)
	return rec
}

func (e *Extension) buildRecord() *storage.ExtensionRecord {
	rec := &storage.ExtensionRecord{
		ClassName:      e.meta.ClassName,
		FuncName:       e.meta.FuncName,
		Source:         e.meta.Source,
		Args:           e.meta.Args,
		InvokeOnLoad:   e.meta.InvokeOnLoad,
		AllowOverwrite: e.meta.AllowOverwrite,
		CreatedAt:      e.meta.CreatedAt,
	}
	rec.Extensions, rec.ExtOrder = extensionRecords(e.exts)
	return rec
}

func extensionRecords(m *omap[*Extension]) (map[string]*storage.ExtensionRecord, []string) {
	if m.len() == 0 {
		return nil, nil
	}
	recs := make(map[string]*storage.ExtensionRecord, m.len())
	order := make([]string, 0, m.len())
	for _, k := range m.keysCopy() {
		if ext, ok := m.get(k); ok {
			recs[k] = ext.buildRecord()
			order = append(order, k)
		}
	}
	return recs, order
}

// Inspect returns this container's metadata snapshot as a generic map, the
// same shape the store persists. With keys, only the named top-level entries
// are returned; an unknown key fails the whole call.
func (c *Container) Inspect(keys ...string) (map[string]any, error) {
	return inspectRecord(c.buildRecord(), keys)
}

// InspectJSON is Inspect rendered as indented JSON.
func (c *Container) InspectJSON(keys ...string) (string, error) {
	return inspectJSON(c, keys)
}

// Inspect returns this leaf's metadata snapshot.
func (l *Leaf) Inspect(keys ...string) (map[string]any, error) {
	return inspectRecord(l.buildRecord(), keys)
}

// InspectJSON is Inspect rendered as indented JSON.
func (l *Leaf) InspectJSON(keys ...string) (string, error) {
	return inspectJSON(l, keys)
}

// Inspect returns this extension's metadata snapshot. The materialized
// behavior object never appears in it.
func (e *Extension) Inspect(keys ...string) (map[string]any, error) {
	return inspectRecord(e.buildRecord(), keys)
}

// InspectJSON is Inspect rendered as indented JSON.
func (e *Extension) InspectJSON(keys ...string) (string, error) {
	return inspectJSON(e, keys)
}

type inspectable interface {
	Inspect(keys ...string) (map[string]any, error)
}

func inspectJSON(n inspectable, keys []string) (string, error) {
	m, err := n.Inspect(keys...)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rendering snapshot: %w", err)
	}
	return string(out), nil
}

// inspectRecord flattens a record to map[string]any through a JSON
// round-trip, then applies the key selection.
func inspectRecord(rec any, keys []string) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}
	if len(keys) == 0 {
		return m, nil
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: empty key", ErrBadKeys)
		}
		v, ok := m[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
		out[k] = v
	}
	return out, nil
}

// Tree renders the subtree as an indented listing, one node per line, for
// logs and the CLI. Stale and patched nodes are marked.
func (c *Container) Tree() string {
	var b strings.Builder
	c.renderLine(&b, "", true)
	return b.String()
}

func (c *Container) renderLine(b *strings.Builder, prefix string, isLast bool) {
	label := c.name
	if c.isRoot {
		label = "root"
	}
	if c.patch != nil {
		label += " [patched:" + c.patch.ClassName + "]"
	}
	writeTreeLine(b, prefix, isLast, label, c.isRoot)

	childPrefix := prefix
	if !c.isRoot {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	type entry struct {
		render func(*strings.Builder, string, bool)
	}
	var entries []entry
	for _, k := range c.children.keysCopy() {
		if child, ok := c.children.get(k); ok {
			entries = append(entries, entry{child.renderLine})
		}
	}
	for _, k := range c.ops.keysCopy() {
		if leaf, ok := c.ops.get(k); ok {
			entries = append(entries, entry{leaf.renderLine})
		}
	}
	for _, k := range c.exts.keysCopy() {
		if ext, ok := c.exts.get(k); ok {
			entries = append(entries, entry{ext.renderLine})
		}
	}
	for i, e := range entries {
		e.render(b, childPrefix, i == len(entries)-1)
	}
}

func (l *Leaf) renderLine(b *strings.Builder, prefix string, isLast bool) {
	label := l.name + " -> " + l.locator
	writeTreeLine(b, prefix, isLast, label, false)
	extPrefix := prefix
	if isLast {
		extPrefix += "    "
	} else {
		extPrefix += "│   "
	}
	keys := l.exts.keysCopy()
	for i, k := range keys {
		if ext, ok := l.exts.get(k); ok {
			ext.renderLine(b, extPrefix, i == len(keys)-1)
		}
	}
}

func (e *Extension) renderLine(b *strings.Builder, prefix string, isLast bool) {
	label := e.name + " (" + e.meta.spec().Symbol() + ")"
	if e.state == Stale {
		label += " [stale]"
	}
	writeTreeLine(b, prefix, isLast, label, false)
	extPrefix := prefix
	if isLast {
		extPrefix += "    "
	} else {
		extPrefix += "│   "
	}
	keys := e.exts.keysCopy()
	for i, k := range keys {
		if ext, ok := e.exts.get(k); ok {
			ext.renderLine(b, extPrefix, i == len(keys)-1)
		}
	}
}

func writeTreeLine(b *strings.Builder, prefix string, isLast bool, label string, isRoot bool) {
	if isRoot {
		b.WriteString(label)
		b.WriteString("\n")
		return
	}
	b.WriteString(prefix)
	if isLast {
		b.WriteString("└── ")
	} else {
		b.WriteString("├── ")
	}
	b.WriteString(label)
	b.WriteString("\n")
}
