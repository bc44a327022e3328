package scheduler

import (
	"testing"

	"github.com/resonance-lang/resonance/internal/types"
	"github.com/stretchr/testify/require"
)

func bundleWithEvents(times ...types.Beat) *types.Bundle {
	var events []types.Event
	for _, t := range times {
		events = append(events, types.Event{Time: t})
	}
	return &types.Bundle{Events: events}
}

func TestAdvanceBeforePublishReturnsNil(t *testing.T) {
	s := New(DefaultRingCapacity)
	b, evs := s.Advance(0, 100)
	require.Nil(t, b)
	require.Nil(t, evs)
}

func TestAdvanceWindowsEventsByTime(t *testing.T) {
	s := New(DefaultRingCapacity)
	s.PublishBundle(bundleWithEvents(0, 100, 200, 300))

	_, evs := s.Advance(0, 150)
	require.Len(t, evs, 2)
	require.Equal(t, types.Beat(0), evs[0].Time)
	require.Equal(t, types.Beat(100), evs[1].Time)

	_, evs = s.Advance(150, 250)
	require.Len(t, evs, 1)
	require.Equal(t, types.Beat(200), evs[0].Time)
}

func TestBundleSwapReseedsCursorAtT0(t *testing.T) {
	s := New(DefaultRingCapacity)
	s.PublishBundle(bundleWithEvents(0, 100, 200))
	_, evs := s.Advance(0, 150)
	require.Len(t, evs, 2)

	s.PublishBundle(bundleWithEvents(500, 600, 700))
	_, evs = s.Advance(550, 650)
	require.Len(t, evs, 1)
	require.Equal(t, types.Beat(600), evs[0].Time)
}

func TestControlRingDrainFIFO(t *testing.T) {
	s := New(8)
	require.True(t, s.PushControl(ControlMsg{Kind: MsgMacroSet, MacroIdx: 0, Value: 0.5}))
	require.True(t, s.PushControl(ControlMsg{Kind: MsgTempoSet, BPM: 140}))

	buf := make([]ControlMsg, 4)
	n := s.DrainControl(buf)
	require.Equal(t, 2, n)
	require.Equal(t, MsgMacroSet, buf[0].Kind)
	require.Equal(t, MsgTempoSet, buf[1].Kind)
}

func TestControlRingBackpressureReturnsFalseWhenFull(t *testing.T) {
	s := New(2)
	require.True(t, s.PushControl(ControlMsg{Kind: MsgMacroSet}))
	require.True(t, s.PushControl(ControlMsg{Kind: MsgMacroSet}))
	require.False(t, s.PushControl(ControlMsg{Kind: MsgMacroSet}), "full ring must reject without blocking")
}
