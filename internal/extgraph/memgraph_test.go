package extgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAndFind(t *testing.T) {
	g := NewMemGraph()
	h := g.Put("media/clip1", "payload")

	got, err := g.Resolve("media/clip1")
	require.NoError(t, err)
	assert.Equal(t, h.ID(), got.ID())
	assert.Equal(t, "clip1", got.CurrentName())
	assert.Equal(t, "payload", got.Text())

	byID, err := g.Find(h.ID())
	require.NoError(t, err)
	assert.Equal(t, "media/clip1", byID.Locator())

	_, err = g.Resolve("media/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameKeepsHandlesLive(t *testing.T) {
	g := NewMemGraph()
	h := g.Put("media/clip1", "x")

	require.NoError(t, g.Rename("media/clip1", "clipA"))

	// Old locator is gone, the retained handle tracks the object.
	_, err := g.Resolve("media/clip1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, h.Valid())
	assert.Equal(t, "clipA", h.CurrentName())
	assert.Equal(t, "media/clipA", h.Locator())
}

func TestDeleteInvalidatesHandles(t *testing.T) {
	g := NewMemGraph()
	h := g.Put("solo", "x")

	require.NoError(t, g.Delete("solo"))
	assert.False(t, h.Valid())
	_, err := g.Find(h.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameTopLevelLocator(t *testing.T) {
	g := NewMemGraph()
	g.Put("logger", "x")
	require.NoError(t, g.Rename("logger", "log2"))

	h, err := g.Resolve("log2")
	require.NoError(t, err)
	assert.Equal(t, "log2", h.CurrentName())
}

func TestReadSource(t *testing.T) {
	g := NewMemGraph()
	g.Put("src/util", "func A() {}")

	text, err := g.ReadSource("src/util")
	require.NoError(t, err)
	assert.Equal(t, "func A() {}", text)

	_, err = g.ReadSource("src/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
