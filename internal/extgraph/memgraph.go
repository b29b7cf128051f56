package extgraph

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemGraph is an in-memory Graph. It backs the test suite and the CLI
// fixture loader, and doubles as the reference semantics for rename and
// deletion behavior: handles handed out earlier keep tracking the object.
type MemGraph struct {
	mu        sync.Mutex
	byID      map[string]*object
	byLocator map[string]string // locator -> id
}

type object struct {
	id      string
	locator string
	text    string
	valid   bool
}

// NewMemGraph returns an empty in-memory graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{
		byID:      make(map[string]*object),
		byLocator: make(map[string]string),
	}
}

// Put creates (or replaces) an object at locator carrying the given source
// text and returns its handle.
func (g *MemGraph) Put(locator, text string) Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byLocator[locator]; ok {
		obj := g.byID[id]
		obj.text = text
		obj.valid = true
		return &memHandle{g: g, id: id}
	}
	obj := &object{id: uuid.NewString(), locator: locator, text: text, valid: true}
	g.byID[obj.id] = obj
	g.byLocator[locator] = obj.id
	return &memHandle{g: g, id: obj.id}
}

// Resolve implements Graph.
func (g *MemGraph) Resolve(locator string) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.byLocator[locator]
	if !ok || !g.byID[id].valid {
		return nil, fmt.Errorf("%w: locator %q", ErrNotFound, locator)
	}
	return &memHandle{g: g, id: id}, nil
}

// Find implements Graph.
func (g *MemGraph) Find(id string) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	obj, ok := g.byID[id]
	if !ok || !obj.valid {
		return nil, fmt.Errorf("%w: id %q", ErrNotFound, id)
	}
	return &memHandle{g: g, id: id}, nil
}

// Rename changes the short name of the object at locator. The object keeps
// its ID, so previously issued handles observe the new name.
func (g *MemGraph) Rename(locator, newName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.byLocator[locator]
	if !ok || !g.byID[id].valid {
		return fmt.Errorf("%w: locator %q", ErrNotFound, locator)
	}
	obj := g.byID[id]
	delete(g.byLocator, obj.locator)
	dir := path.Dir(obj.locator)
	if dir == "." {
		obj.locator = newName
	} else {
		obj.locator = dir + "/" + newName
	}
	g.byLocator[obj.locator] = id
	return nil
}

// Delete removes the object at locator. Handles pointing at it turn invalid.
func (g *MemGraph) Delete(locator string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.byLocator[locator]
	if !ok {
		return fmt.Errorf("%w: locator %q", ErrNotFound, locator)
	}
	g.byID[id].valid = false
	delete(g.byLocator, locator)
	return nil
}

// ReadSource satisfies the extractor's source reader: the payload of the
// object at locator is its source text.
func (g *MemGraph) ReadSource(locator string) (string, error) {
	h, err := g.Resolve(locator)
	if err != nil {
		return "", err
	}
	return h.Text(), nil
}

type memHandle struct {
	g  *MemGraph
	id string
}

func (h *memHandle) ID() string { return h.id }

func (h *memHandle) Locator() string {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	if obj, ok := h.g.byID[h.id]; ok {
		return obj.locator
	}
	return ""
}

func (h *memHandle) CurrentName() string {
	loc := h.Locator()
	if loc == "" {
		return ""
	}
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		return loc[i+1:]
	}
	return loc
}

func (h *memHandle) Valid() bool {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	obj, ok := h.g.byID[h.id]
	return ok && obj.valid
}

func (h *memHandle) Text() string {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	if obj, ok := h.g.byID[h.id]; ok {
		return obj.text
	}
	return ""
}
