package sectionctl

import (
	"testing"

	"github.com/resonance-lang/resonance/internal/types"
	"github.com/stretchr/testify/require"
)

func testSections() []types.Section {
	return []types.Section{{Name: "intro"}, {Name: "groove"}, {Name: "break"}}
}

func TestDefaultAdvanceWrapsAround(t *testing.T) {
	c := New(testSections(), nil)
	require.Equal(t, "intro", c.CurrentSection().Name)
	c.CommitAtBoundary(true)
	require.Equal(t, "groove", c.CurrentSection().Name)
	c.CommitAtBoundary(true)
	require.Equal(t, "break", c.CurrentSection().Name)
	c.CommitAtBoundary(true)
	require.Equal(t, "intro", c.CurrentSection().Name, "should wrap to the first section")
}

func TestNoAdvanceWithoutCompletion(t *testing.T) {
	c := New(testSections(), nil)
	c.CommitAtBoundary(false)
	require.Equal(t, "intro", c.CurrentSection().Name)
}

func TestJumpReplacesDefaultAdvance(t *testing.T) {
	c := New(testSections(), nil)
	require.NoError(t, c.RequestJump("break"))
	require.True(t, c.HasPendingJump())
	c.CommitAtBoundary(true) // section complete, but jump takes precedence
	require.Equal(t, "break", c.CurrentSection().Name)
	require.False(t, c.HasPendingJump())
}

func TestJumpDoesNotApplyBeforeCommit(t *testing.T) {
	c := New(testSections(), nil)
	require.NoError(t, c.RequestJump("break"))
	require.Equal(t, "intro", c.CurrentSection().Name, "pending jump must not apply before a boundary commit")
}

func TestUnknownSectionNameErrors(t *testing.T) {
	c := New(testSections(), nil)
	require.Error(t, c.RequestJump("nonexistent"))
}

func TestLayerToggleQueuesUntilCommit(t *testing.T) {
	layers := []types.Layer{{Name: "build", Enabled: false}}
	c := New(testSections(), layers)
	require.NoError(t, c.RequestLayerToggle(0, true))
	require.Len(t, c.ActiveLayers(), 0, "toggle must not apply before commit")
	c.CommitAtBoundary(false)
	require.Len(t, c.ActiveLayers(), 1)
	require.Equal(t, "build", c.ActiveLayers()[0].Name)
}

func TestWithinGrace(t *testing.T) {
	require.True(t, WithinGrace(0))
	require.True(t, WithinGrace(GraceWindow))
	require.False(t, WithinGrace(GraceWindow+1))
	require.False(t, WithinGrace(-1))
}
