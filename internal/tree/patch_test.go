package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchReplacesContainerPreservingState(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("ops/r2", "")
	f.put("src/greet", greetSrc)
	f.put("src/service", serviceSrc)

	child, err := f.root.AddNode("svc", "ops/r1", "ops/r2")
	require.NoError(t, err)
	leaf, _ := child.Op("r1")
	ext, err := leaf.ExtendNode("greeter", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)
	_, err = child.ExtendNode("cgreet", Spec{FuncName: "Greet"}, "src/greet", nil)
	require.NoError(t, err)

	node, err := f.root.ExtendNode("svc", Spec{ClassName: "Service"}, "src/service",
		&ExtendOptions{AllowOverwrite: true})
	require.NoError(t, err)

	patched, ok := node.(*Container)
	require.True(t, ok)
	assert.NotSame(t, child, patched)
	assert.Equal(t, "svc", patched.Name())
	assert.Equal(t, "svc", patched.Path())
	assert.Equal(t, Removed, child.State())

	// Children, leaves, and extensions migrated wholesale.
	assert.Equal(t, []string{"r1", "r2"}, patched.Ops())
	assert.Equal(t, []string{"cgreet"}, patched.Exts())
	mleaf, ok := patched.Op("r1")
	require.True(t, ok)
	assert.Same(t, leaf, mleaf)
	assert.Equal(t, Attached, ext.State())

	info, ok := patched.PatchInfo()
	require.True(t, ok)
	assert.Equal(t, "Service", info.ClassName)
	assert.Equal(t, "src/service", info.Source)

	ping, err := patched.Attr("Ping")
	require.NoError(t, err)
	fn, ok := ping.(func() string)
	require.True(t, ok)
	assert.Equal(t, "pong", fn())
}

func TestPatchKeepsNamespacePosition(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/service", serviceSrc)

	_, err := f.root.Add("a", "ops/r1")
	require.NoError(t, err)
	_, err = f.root.Add("b", "ops/r1")
	require.NoError(t, err)
	_, err = f.root.Add("c", "ops/r1")
	require.NoError(t, err)

	_, err = f.root.ExtendNode("b", Spec{ClassName: "Service"}, "src/service",
		&ExtendOptions{AllowOverwrite: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, f.root.Children())
}

func TestPatchRequiresAllowOverwrite(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/service", serviceSrc)

	_, err := f.root.Add("svc", "ops/r1")
	require.NoError(t, err)

	_, err = f.root.ExtendNode("svc", Spec{ClassName: "Service"}, "src/service", nil)
	require.ErrorIs(t, err, ErrNameConflict)
	assert.Contains(t, err.Error(), "AllowOverwrite")
}

func TestPatchRejectsLeafTarget(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/service", serviceSrc)

	child, err := f.root.AddNode("svc", "ops/r1")
	require.NoError(t, err)

	_, err = child.ExtendNode("r1", Spec{ClassName: "Service"}, "src/service",
		&ExtendOptions{AllowOverwrite: true})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = child.ExtendNode("r1", Spec{ClassName: "Service"}, "src/service", nil)
	assert.ErrorIs(t, err, ErrNameConflict)
}

func TestPatchRejectsArgsAndInvokeOnLoad(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/service", serviceSrc)

	child, err := f.root.AddNode("svc", "ops/r1")
	require.NoError(t, err)

	_, err = f.root.ExtendNode("svc", Spec{ClassName: "Service"}, "src/service",
		&ExtendOptions{AllowOverwrite: true, InvokeOnLoad: true})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = f.root.ExtendNode("svc", Spec{ClassName: "Service"}, "src/service",
		&ExtendOptions{AllowOverwrite: true, Args: []any{"x"}})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	// The rejected calls mutated nothing.
	_, patched := child.PatchInfo()
	assert.False(t, patched)
	assert.Equal(t, Attached, child.State())
}

func TestPatchRequiresClassSpec(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/greet", greetSrc)

	_, err := f.root.Add("svc", "ops/r1")
	require.NoError(t, err)

	_, err = f.root.ExtendNode("svc", Spec{FuncName: "Greet"}, "src/greet",
		&ExtendOptions{AllowOverwrite: true})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestPatchSurvivesReopen(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/service", serviceSrc)

	_, err := f.root.Add("svc", "ops/r1")
	require.NoError(t, err)
	_, err = f.root.ExtendNode("svc", Spec{ClassName: "Service"}, "src/service",
		&ExtendOptions{AllowOverwrite: true})
	require.NoError(t, err)

	reopened := f.reopen(t)
	rchild, ok := reopened.Child("svc")
	require.True(t, ok)

	info, ok := rchild.PatchInfo()
	require.True(t, ok)
	assert.Equal(t, "Service", info.ClassName)
	assert.Equal(t, []string{"r1"}, rchild.Ops())

	ping, err := rchild.Attr("Ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", ping.(func() string)())
}

func TestPatchDroppedWhenSourceGoneOnReopen(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")
	f.put("src/service", serviceSrc)

	_, err := f.root.Add("svc", "ops/r1")
	require.NoError(t, err)
	_, err = f.root.ExtendNode("svc", Spec{ClassName: "Service"}, "src/service",
		&ExtendOptions{AllowOverwrite: true})
	require.NoError(t, err)

	require.NoError(t, f.graph.Delete("src/service"))
	reopened := f.reopen(t)

	// Structure survives unpatched.
	rchild, ok := reopened.Child("svc")
	require.True(t, ok)
	_, patched := rchild.PatchInfo()
	assert.False(t, patched)
	assert.Equal(t, []string{"r1"}, rchild.Ops())
}

func TestUnpatchedContainerHasNoBehavior(t *testing.T) {
	f := newFixture(t)
	f.put("ops/r1", "")

	child, err := f.root.AddNode("svc", "ops/r1")
	require.NoError(t, err)

	_, err = child.Attr("Ping")
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}
