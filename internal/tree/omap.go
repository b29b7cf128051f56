package tree

// omap is a string-keyed map that remembers insertion order. The persisted
// mirror and refresh both iterate in this order, and a rename keeps the
// renamed entry in place instead of moving it to the back.
type omap[V any] struct {
	keys []string
	vals map[string]V
}

func newOmap[V any]() *omap[V] {
	return &omap[V]{vals: make(map[string]V)}
}

func (m *omap[V]) get(key string) (V, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *omap[V]) has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

// set inserts or replaces. A replaced key keeps its position.
func (m *omap[V]) set(key string, v V) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

func (m *omap[V]) delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// rename re-keys an entry in place. It refuses to clobber an existing
// newKey.
func (m *omap[V]) rename(oldKey, newKey string) bool {
	v, ok := m.vals[oldKey]
	if !ok || m.has(newKey) {
		return false
	}
	for i, k := range m.keys {
		if k == oldKey {
			m.keys[i] = newKey
			break
		}
	}
	delete(m.vals, oldKey)
	m.vals[newKey] = v
	return true
}

func (m *omap[V]) len() int { return len(m.vals) }

// keysCopy returns the keys in order; safe to range over while mutating.
func (m *omap[V]) keysCopy() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}
