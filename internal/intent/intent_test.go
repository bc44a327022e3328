package intent

import (
	"testing"

	"github.com/resonance-lang/resonance/internal/scheduler"
	"github.com/resonance-lang/resonance/internal/types"
	"github.com/stretchr/testify/require"
)

const src = `tempo 120
track kick {
  kit: default
  section groove [1 bars] {
    hit: [X . . .]
  }
}
macro vol = 0.5
`

func TestApplySetMacroRangeChecksAndForwards(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	p := New(sched, src, 1, 0)

	require.NoError(t, p.ApplySetMacro(SetMacro{Index: 0, Value: 0.7}))
	buf := make([]scheduler.ControlMsg, 1)
	n := sched.DrainControl(buf)
	require.Equal(t, 1, n)
	require.Equal(t, scheduler.MsgMacroSet, buf[0].Kind)
	require.InDelta(t, 0.7, buf[0].Value, 1e-9)

	require.Error(t, p.ApplySetMacro(SetMacro{Index: 5, Value: 0.5}))
}

func TestApplySetMacroClampsValue(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	p := New(sched, src, 1, 0)
	require.NoError(t, p.ApplySetMacro(SetMacro{Index: 0, Value: 5.0}))
	buf := make([]scheduler.ControlMsg, 1)
	sched.DrainControl(buf)
	require.Equal(t, 1.0, buf[0].Value)
}

func TestApplyNudgeMacroForwardsAsDelta(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	p := New(sched, src, 1, 0)

	require.NoError(t, p.ApplyNudgeMacro(NudgeMacro{Index: 0, Delta: -0.05}))
	buf := make([]scheduler.ControlMsg, 1)
	n := sched.DrainControl(buf)
	require.Equal(t, 1, n)
	require.Equal(t, scheduler.MsgMacroNudge, buf[0].Kind, "a nudge must not be forwarded as MsgMacroSet")
	require.InDelta(t, -0.05, buf[0].Value, 1e-9)

	require.Error(t, p.ApplyNudgeMacro(NudgeMacro{Index: 5, Delta: 0.1}))
}

func TestApplySetTempoRejectsNonPositive(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	p := New(sched, src, 1, 0)
	require.Error(t, p.ApplySetTempo(SetTempo{BPM: 0}))
	require.NoError(t, p.ApplySetTempo(SetTempo{BPM: 128}))
}

func TestProposeAndAcceptCompilesNewBundle(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	p := New(sched, src, 1, 0)

	newSrc := src + "\nmacro extra = 0.1\n"
	prop, errs := p.ProposeDiff(newSrc, "add macro")
	require.False(t, errs.HasErrors())

	bundle, acceptErrs := p.Accept(prop, types.Seed(1))
	require.False(t, acceptErrs.HasErrors())
	require.NotNil(t, bundle)
	require.Equal(t, hashSource(newSrc), p.CurrentHash())
}

func TestAcceptRejectsStaleProposal(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	p := New(sched, src, 1, 0)

	prop, errs := p.ProposeDiff(src+"\nmacro a = 0.2\n", "one")
	require.False(t, errs.HasErrors())

	// Another proposal gets accepted first, moving currentHash forward.
	prop2, errs := p.ProposeDiff(src+"\nmacro b = 0.3\n", "two")
	require.False(t, errs.HasErrors())
	_, acceptErrs := p.Accept(prop2, types.Seed(1))
	require.False(t, acceptErrs.HasErrors())

	_, staleErrs := p.Accept(prop, types.Seed(1))
	require.True(t, staleErrs.HasErrors(), "proposal diffed against an old hash must be rejected as stale")
}

func TestRejectDoesNotChangeState(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultRingCapacity)
	p := New(sched, src, 1, 0)
	before := p.CurrentHash()

	prop, errs := p.ProposeDiff(src+"\nmacro z = 0.9\n", "z")
	require.False(t, errs.HasErrors())
	p.Reject(prop)
	require.Equal(t, before, p.CurrentHash())
}
