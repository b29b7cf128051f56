package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshNoChangesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/greet", greetSrc)

	child, err := f.root.AddNode("items", "ops/r1")
	require.NoError(t, err)
	_, err = child.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)

	before, err := f.root.Inspect()
	require.NoError(t, err)

	require.NoError(t, f.root.Refresh())
	require.NoError(t, f.root.Refresh())

	after, err := f.root.Inspect()
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("snapshot changed across no-op refreshes (-before +after):\n%s", diff)
	}
}

func TestRefreshReKeysRenamedLeaf(t *testing.T) {
	f := newFixture(t)
	f.put("ops/alpha", "")
	f.put("ops/keep", "")

	child, err := f.root.AddNode("items", "ops/alpha", "ops/keep")
	require.NoError(t, err)
	leaf, ok := child.Op("alpha")
	require.True(t, ok)

	require.NoError(t, f.graph.Rename("ops/alpha", "beta"))
	require.NoError(t, f.root.Refresh())

	// Re-keyed in place: beta keeps alpha's position.
	assert.Equal(t, []string{"beta", "keep"}, child.Ops())
	assert.Equal(t, "beta", leaf.Name())
	assert.Equal(t, "items.beta", leaf.Path())
	assert.Equal(t, "ops/beta", leaf.Locator())
	_, ok = child.Op("alpha")
	assert.False(t, ok)
}

func TestRefreshRenamePropagatesToExtensionPaths(t *testing.T) {
	f := newFixture(t)
	f.put("ops/alpha", "")
	f.put("src/greet", greetSrc)

	child, err := f.root.AddNode("items", "ops/alpha")
	require.NoError(t, err)
	leaf, _ := child.Op("alpha")
	ext, err := leaf.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)

	require.NoError(t, f.graph.Rename("ops/alpha", "beta"))
	require.NoError(t, f.root.Refresh())

	assert.Equal(t, "items.beta.greeter", ext.Path())
	assert.Equal(t, Attached, ext.State())
}

func TestRefreshDropsDeletedLeaf(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("ops/r2", "")
	f.put("src/greet", greetSrc)

	child, err := f.root.AddNode("items", "ops/r1", "ops/r2")
	require.NoError(t, err)
	leaf, _ := child.Op("r1")
	ext, err := leaf.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)

	require.NoError(t, f.graph.Delete("ops/r1"))
	require.NoError(t, f.root.Refresh())

	assert.Equal(t, []string{"r2"}, child.Ops())
	assert.Equal(t, Removed, leaf.State())
	assert.Equal(t, Removed, ext.State())

	// The container itself survives, as does the root.
	_, ok := f.root.Child("items")
	assert.True(t, ok)
}

func TestRefreshRecoversRenameThroughHandle(t *testing.T) {
	f := newFixture(t)
	f.put("ops/alpha", "")

	child, err := f.root.AddNode("items", "ops/alpha")
	require.NoError(t, err)

	// Rename twice between refreshes; the locator is stale but the retained
	// handle still tracks the object.
	require.NoError(t, f.graph.Rename("ops/alpha", "beta"))
	require.NoError(t, f.graph.Rename("ops/beta", "gamma"))
	require.NoError(t, f.root.Refresh())

	assert.Equal(t, []string{"gamma"}, child.Ops())
	leaf, ok := child.Op("gamma")
	require.True(t, ok)
	assert.Equal(t, "ops/gamma", leaf.Locator())
}

func TestRefreshExtensionGoesStaleAndRecovers(t *testing.T) {
	f := newFixture(t)
	f.put("src/greet", greetSrc)

	node, err := f.root.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)
	ext := node.(*Extension)

	require.NoError(t, f.graph.Delete("src/greet"))
	require.NoError(t, f.root.Refresh())
	assert.Equal(t, Stale, ext.State())

	// Metadata survives staleness.
	assert.Equal(t, "Greet", ext.Metadata().FuncName)

	f.put("src/greet", greetSrc)
	require.NoError(t, f.root.Refresh())
	assert.Equal(t, Attached, ext.State())

	out, err := ext.Invoke("back")
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
}

func TestRefreshFollowsMovedExtensionSource(t *testing.T) {
	f := newFixture(t)
	f.put("src/greet", greetSrc)

	node, err := f.root.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)
	ext := node.(*Extension)

	require.NoError(t, f.graph.Rename("src/greet", "welcome"))
	require.NoError(t, f.root.Refresh())

	assert.Equal(t, Attached, ext.State())
	assert.Equal(t, "src/welcome", ext.Metadata().Source)
}

func TestLeafRefreshScopedToLeaf(t *testing.T) {
	f := newFixture(t)
	f.put("ops/alpha", "")
	f.put("ops/other", "")

	child, err := f.root.AddNode("items", "ops/alpha", "ops/other")
	require.NoError(t, err)
	leaf, _ := child.Op("alpha")

	require.NoError(t, f.graph.Rename("ops/alpha", "beta"))
	require.NoError(t, f.graph.Delete("ops/other"))

	require.NoError(t, leaf.Refresh())

	// Only the refreshed leaf reconciled; the deleted sibling stays until a
	// wider refresh.
	assert.Equal(t, []string{"beta", "other"}, child.Ops())
}

func TestReopenRestoresTree(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/greet", greetSrc)
	f.put("src/logger", loggerSrc)

	child, err := f.root.AddNode("items", "ops/r1")
	require.NoError(t, err)
	leaf, _ := child.Op("r1")
	_, err = leaf.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)
	_, err = f.root.ExtendNode("logger", Spec{ClassName: "Logger"}, "src/logger", nil)
	require.NoError(t, err)

	reopened := f.reopen(t)

	assert.Equal(t, []string{"items"}, reopened.Children())
	rchild, ok := reopened.Child("items")
	require.True(t, ok)
	rleaf, ok := rchild.Op("r1")
	require.True(t, ok)
	assert.Equal(t, "ops/r1", rleaf.Locator())

	rext, ok := rleaf.Ext("greeter")
	require.True(t, ok)
	assert.Equal(t, Attached, rext.State())
	out, err := rext.Invoke("again")
	require.NoError(t, err)
	assert.Equal(t, "hello again", out)

	assert.Equal(t, []string{"logger"}, reopened.Exts())
}

func TestReopenRecoversRenamedLeafByHandle(t *testing.T) {
	f := newFixture(t)
	f.put("ops/alpha", "")

	_, err := f.root.AddNode("items", "ops/alpha")
	require.NoError(t, err)

	require.NoError(t, f.graph.Rename("ops/alpha", "beta"))
	reopened := f.reopen(t)

	rchild, ok := reopened.Child("items")
	require.True(t, ok)
	assert.Equal(t, []string{"beta"}, rchild.Ops())
}

func TestReopenKeepsCollidingRenamedLeaf(t *testing.T) {
	f := newFixture(t)
	f.put("ops/alpha", "")
	f.put("ops/beta", "")

	child, err := f.root.AddNode("items", "ops/alpha", "ops/beta")
	require.NoError(t, err)

	// The external rename collides with a sibling; the live tree keeps the
	// old key with a warning.
	require.NoError(t, f.graph.Rename("ops/alpha", "beta"))
	require.NoError(t, f.root.Refresh())
	require.Equal(t, []string{"alpha", "beta"}, child.Ops())

	// A restart must not collapse the collision either.
	reopened := f.reopen(t)
	rchild, ok := reopened.Child("items")
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "beta"}, rchild.Ops())
}

func TestReopenRestoresStaleExtension(t *testing.T) {
	f := newFixture(t)
	f.put("src/greet", greetSrc)

	_, err := f.root.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)

	require.NoError(t, f.graph.Delete("src/greet"))
	reopened := f.reopen(t)

	rext, ok := reopened.Ext("greeter")
	require.True(t, ok)
	assert.Equal(t, Stale, rext.State())
	_, err = rext.Invoke("x")
	assert.ErrorIs(t, err, ErrUnresolvedReference)

	// Restoring the source and refreshing recovers it.
	f.put("src/greet", greetSrc)
	require.NoError(t, reopened.Refresh())
	assert.Equal(t, Attached, rext.State())
}

func TestReopenDropsDeletedLeaf(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")

	_, err := f.root.AddNode("items", "ops/r1")
	require.NoError(t, err)

	require.NoError(t, f.graph.Delete("ops/r1"))
	reopened := f.reopen(t)

	rchild, ok := reopened.Child("items")
	require.True(t, ok)
	assert.Empty(t, rchild.Ops())
}
