package beatclock

import (
	"testing"

	"github.com/resonance-lang/resonance/internal/types"
	"github.com/stretchr/testify/require"
)

func TestAdvanceSampleAccurate(t *testing.T) {
	c := New(120)
	// At 120bpm, 44100Hz: one quarter note = 60/120 * 44100 = 22050 frames.
	c.Advance(22050, 44100)
	require.InDelta(t, 1.0, c.Position().Float64(), 1e-9)
}

func TestQueuedTempoAppliesOnlyAtBarBoundary(t *testing.T) {
	c := New(120)
	c.QueueTempo(140)
	// Advance less than a bar (4 beats): tempo must not change yet.
	c.Advance(22050, 44100) // 1 beat
	require.Equal(t, 120.0, c.BPM())

	// Advance to cross the 4-beat bar boundary.
	c.Advance(22050*3, 44100)
	require.Equal(t, 140.0, c.BPM())
}

func TestApplyNowRejectsMidBar(t *testing.T) {
	c := New(120)
	c.Advance(100, 44100)
	require.False(t, c.AtBarBoundary())
	err := c.ApplyNow(130)
	require.ErrorIs(t, err, ErrMidBarTempoChange)
}

func TestApplyNowAtBoundary(t *testing.T) {
	c := New(120)
	require.True(t, c.AtBarBoundary())
	require.NoError(t, c.ApplyNow(90))
	require.Equal(t, 90.0, c.BPM())
}

func TestSeekToDoesNotChangeTempo(t *testing.T) {
	c := New(100)
	c.SeekTo(types.Bars(4))
	require.Equal(t, types.Bars(4), c.Position())
	require.Equal(t, 100.0, c.BPM())
}
