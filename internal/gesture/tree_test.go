package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestured/internal/input"
)

func TestBuild_SharedPrefixCollapses(t *testing.T) {
	tree := Build([]Spec{
		{Sequence: []string{"Next"}, Action: "B"},
		{Sequence: []string{"Next", "Next"}, Action: "A"},
		{Sequence: []string{"Next", "Prev"}, Action: "C"},
	})

	root := tree.Root()
	require.Len(t, root.children, 1)
	assert.True(t, root.IsRoot())

	next := root.Child(input.Next)
	require.NotNil(t, next)
	assert.Equal(t, "B", next.Action)
	assert.Equal(t, 1, next.Depth)
	assert.Len(t, next.children, 2)
	assert.False(t, next.IsLeaf())

	nn := next.Child(input.Next)
	require.NotNil(t, nn)
	assert.Equal(t, "A", nn.Action)
	assert.Equal(t, 2, nn.Depth)
	assert.True(t, nn.IsLeaf())

	assert.Equal(t, 4, tree.Size())
}

func TestBuild_LastWriteWins(t *testing.T) {
	tree := Build([]Spec{
		{Sequence: []string{"Prev"}, Action: "first"},
		{Sequence: []string{"Prev"}, Action: "second"},
	})

	assert.Equal(t, "second", tree.Root().Child(input.Prev).Action)
	assert.Equal(t, 2, tree.Size())
}

func TestBuild_PassThroughNodesHaveNoAction(t *testing.T) {
	tree := Build([]Spec{{Sequence: []string{"Up", "Down", "Up"}, Action: "x"}})

	up := tree.Root().Child(input.VolumeUp)
	require.NotNil(t, up)
	assert.Empty(t, up.Action)

	down := up.Child(input.VolumeDown)
	require.NotNil(t, down)
	assert.Empty(t, down.Action)
	assert.Equal(t, "x", down.Child(input.VolumeUp).Action)
}

func TestBuild_UnknownNameBecomesNoneEdge(t *testing.T) {
	tree := Build([]Spec{{Sequence: []string{"Nxt"}, Action: "typo"}})

	edge := tree.Root().Child(input.None)
	require.NotNil(t, edge)
	assert.Equal(t, "typo", edge.Action)
	assert.Nil(t, tree.Root().Child(input.Next))
}

func TestBuild_Empty(t *testing.T) {
	tree := Build(nil)
	assert.True(t, tree.Root().IsLeaf())
	assert.Equal(t, 1, tree.Size())
	assert.Empty(t, tree.Bindings())
}

func TestBuild_Idempotent(t *testing.T) {
	specs := []Spec{
		{Sequence: []string{"PlayPause"}, Action: "toggle"},
		{Sequence: []string{"Next", "Next"}, Action: "A"},
		{Sequence: []string{"Next"}, Action: "B"},
		{Sequence: []string{"Up", "Up", "Down"}, Action: "C"},
	}

	a := Build(specs)
	b := Build(specs)

	assert.Equal(t, a.Size(), b.Size())
	assert.Equal(t, a.Bindings(), b.Bindings())
}

func TestBindings(t *testing.T) {
	tree := Build([]Spec{
		{Sequence: []string{"Next", "Next"}, Action: "A"},
		{Sequence: []string{"Next"}, Action: "B"},
		{Sequence: []string{"Play"}, Action: ""},
	})

	got := tree.Bindings()
	require.Len(t, got, 3)

	assert.Equal(t, "Play", got[0].Name())
	assert.True(t, got[0].Immediate)
	assert.Empty(t, got[0].Action)

	assert.Equal(t, "Next", got[1].Name())
	assert.False(t, got[1].Immediate)
	assert.Equal(t, "B", got[1].Action)

	assert.Equal(t, "Next+Next", got[2].Name())
	assert.True(t, got[2].Immediate)
}
