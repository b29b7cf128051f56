package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOmapOrder(t *testing.T) {
	m := newOmap[int]()
	m.set("b", 2)
	m.set("a", 1)
	m.set("c", 3)
	assert.Equal(t, []string{"b", "a", "c"}, m.keysCopy())

	// Replacing keeps the position.
	m.set("a", 10)
	assert.Equal(t, []string{"b", "a", "c"}, m.keysCopy())
	v, ok := m.get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestOmapDelete(t *testing.T) {
	m := newOmap[int]()
	m.set("a", 1)
	m.set("b", 2)
	m.set("c", 3)

	m.delete("b")
	assert.Equal(t, []string{"a", "c"}, m.keysCopy())
	assert.False(t, m.has("b"))
	assert.Equal(t, 2, m.len())

	// Deleting an absent key is a no-op.
	m.delete("b")
	assert.Equal(t, 2, m.len())
}

func TestOmapRenameKeepsPosition(t *testing.T) {
	m := newOmap[int]()
	m.set("a", 1)
	m.set("b", 2)
	m.set("c", 3)

	assert.True(t, m.rename("b", "z"))
	assert.Equal(t, []string{"a", "z", "c"}, m.keysCopy())
	v, ok := m.get("z")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.False(t, m.has("b"))
}

func TestOmapRenameRefusesClobber(t *testing.T) {
	m := newOmap[int]()
	m.set("a", 1)
	m.set("b", 2)

	assert.False(t, m.rename("a", "b"))
	assert.Equal(t, []string{"a", "b"}, m.keysCopy())
	assert.False(t, m.rename("missing", "x"))
}
