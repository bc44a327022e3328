package runtime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resonance-lang/resonance/internal/compiler"
	"github.com/resonance-lang/resonance/internal/parser"
	"github.com/resonance-lang/resonance/internal/scheduler"
	"github.com/resonance-lang/resonance/internal/types"
)

const src = `tempo 120
track kick {
  kit: default
  section groove [1 bars] {
    hit: [X . X .]
  }
}
track lead {
  poly
  section groove [1 bars] {
    notes: [C4 . E4 .]
  }
}
macro vol = 0.5
map vol -> lead.cutoff : 0..1 linear
`

func mustCompile(t *testing.T) *types.Bundle {
	t.Helper()
	prog, errs := parser.Parse(src)
	require.False(t, errs.HasErrors(), "%v", errs)
	bundle, errs := compiler.Compile(prog, types.Seed(1))
	require.False(t, errs.HasErrors(), "%v", errs)
	return bundle
}

func TestProcessProducesFiniteOutputAndDispatchesEvents(t *testing.T) {
	bundle := mustCompile(t)
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	sched.PublishBundle(bundle)

	rt := New(bundle, sched, 48000)

	out := make([]float64, 4096)
	for i := 0; i < 20; i++ {
		rt.Process(out, 4096)
	}
	for _, s := range out {
		require.False(t, math.IsNaN(s))
		require.False(t, math.IsInf(s, 0))
	}
}

func TestMacroSetControlMessageUpdatesRunningValue(t *testing.T) {
	bundle := mustCompile(t)
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	sched.PublishBundle(bundle)
	rt := New(bundle, sched, 48000)

	require.True(t, sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgMacroSet, MacroIdx: 0, Value: 0.9}))
	out := make([]float64, 256)
	rt.Process(out, 256)

	require.InDelta(t, 0.9, rt.MacroValue(0), 1e-9)
}

func TestMacroNudgeControlMessageIncrementsRunningValue(t *testing.T) {
	bundle := mustCompile(t)
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	sched.PublishBundle(bundle)
	rt := New(bundle, sched, 48000)

	require.True(t, sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgMacroNudge, MacroIdx: 0, Value: 0.05}))
	out := make([]float64, 256)
	rt.Process(out, 256)
	require.InDelta(t, 0.55, rt.MacroValue(0), 1e-9, "macro started at 0.5, nudge must add, not replace")

	require.True(t, sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgMacroNudge, MacroIdx: 0, Value: -1.0}))
	rt.Process(out, 256)
	require.InDelta(t, 0.0, rt.MacroValue(0), 1e-9, "running value must clamp to 0 rather than go negative")
}

const srcTwoSections = `tempo 120
track kick {
  kit: default
  section groove [1 bars] {
    hit: [X . X .]
  }
  section break [1 bars] {
    hit: [X X X X]
  }
}
`

func TestSectionJumpControlMessageAdvancesAtBarBoundary(t *testing.T) {
	prog, errs := parser.Parse(srcTwoSections)
	require.False(t, errs.HasErrors(), "%v", errs)
	bundle, errs := compiler.Compile(prog, types.Seed(1))
	require.False(t, errs.HasErrors(), "%v", errs)

	sched := scheduler.New(scheduler.DefaultRingCapacity)
	sched.PublishBundle(bundle)
	rt := New(bundle, sched, 48000)

	require.True(t, sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgSectionJump, SectionIdx: 1}))

	// 96000 frames at 48kHz/120bpm is exactly one full 4-beat bar, so this
	// Process call must cross the bar boundary and commit the queued jump.
	framesPerBar := 96000
	out := make([]float64, framesPerBar)
	rt.Process(out, framesPerBar)

	require.Equal(t, 1, rt.CurrentSection())
}

func TestSectionAutoAdvancesOnBarCrossingWithoutPendingJump(t *testing.T) {
	prog, errs := parser.Parse(srcTwoSections)
	require.False(t, errs.HasErrors(), "%v", errs)
	bundle, errs := compiler.Compile(prog, types.Seed(1))
	require.False(t, errs.HasErrors(), "%v", errs)

	sched := scheduler.New(scheduler.DefaultRingCapacity)
	sched.PublishBundle(bundle)
	rt := New(bundle, sched, 48000)

	require.Equal(t, 0, rt.CurrentSection())

	framesPerBar := 96000
	out := make([]float64, framesPerBar)
	rt.Process(out, framesPerBar)

	require.Equal(t, 1, rt.CurrentSection(), "a completed 1-bar section must auto-advance at the crossing, not stall on exact-landing")
}
