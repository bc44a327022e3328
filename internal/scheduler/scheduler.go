// Package scheduler owns the handoff between the control thread and the
// audio thread (spec §4.H): an atomically-swapped bundle pointer, a
// bounded control ring for quantized mutation requests, and an event
// cursor that walks the active bundle's sorted event vector window by
// window.
package scheduler

import (
	"sort"
	"sync/atomic"

	"github.com/resonance-lang/resonance/internal/ringbuf"
	"github.com/resonance-lang/resonance/internal/types"
)

// MsgKind distinguishes the control-ring message shapes: the four spec
// §4.H names MacroSet, SectionJumpRequest, LayerToggle, TempoSet, plus
// MacroNudge for relative macro moves (spec §4.J).
type MsgKind int

const (
	MsgMacroSet MsgKind = iota
	MsgMacroNudge
	MsgSectionJump
	MsgLayerToggle
	MsgTempoSet
)

// ControlMsg is a single fixed-size control-ring entry. Only the fields
// relevant to Kind are meaningful; this is a tagged union represented as
// a flat struct so the ring never allocates.
type ControlMsg struct {
	Kind       MsgKind
	MacroIdx   types.MacroIndex
	Value      float64
	SectionIdx int
	LayerIdx   int
	Enabled    bool
	BPM        float64
}

// DefaultRingCapacity is the control ring's default size — generous
// enough that a performer mashing macro knobs at audio-callback rate
// still fits between two UI-thread publish cycles.
const DefaultRingCapacity = 256

// Scheduler is the single producer/single consumer handoff point. The
// control thread calls PublishBundle and PushControl; the audio thread
// calls Advance and DrainControl. No other thread may touch either side.
type Scheduler struct {
	bundle   atomic.Pointer[types.Bundle]
	lastSeen *types.Bundle
	cursor   int
	ring     *ringbuf.Ring[ControlMsg]
}

// New returns a Scheduler with a control ring of the given capacity
// (rounded up to a power of two by ringbuf.New).
func New(ringCapacity int) *Scheduler {
	return &Scheduler{ring: ringbuf.New[ControlMsg](ringCapacity)}
}

// PublishBundle installs b as the active bundle. Safe to call from the
// control thread at any time; the audio thread picks it up at the top
// of its next callback via Advance.
func (s *Scheduler) PublishBundle(b *types.Bundle) {
	s.bundle.Store(b)
}

// PushControl enqueues msg for the audio thread to drain. Returns false
// if the ring is full — spec §4.H's backpressure contract leaves
// coalescing or blocking-with-timeout to the caller; PushControl itself
// never blocks.
func (s *Scheduler) PushControl(msg ControlMsg) bool {
	return s.ring.TryPush(msg)
}

// DrainControl pops up to len(into) pending messages into into, in FIFO
// order, returning the count actually drained. Called once at the start
// of every audio callback (spec §4.H).
func (s *Scheduler) DrainControl(into []ControlMsg) int {
	n := 0
	for n < len(into) {
		msg, ok := s.ring.TryPop()
		if !ok {
			break
		}
		into[n] = msg
		n++
	}
	return n
}

// Advance returns the currently active bundle and the events whose Time
// falls in [t0, t1). If the bundle pointer changed since the previous
// call, the event cursor is re-seeded by binary search at t0 before
// scanning, per spec §4.H ("the new bundle's event cursor is re-seeded
// by binary search at t0"). Returns (nil, nil) if no bundle has been
// published yet.
func (s *Scheduler) Advance(t0, t1 types.Beat) (*types.Bundle, []types.Event) {
	b := s.bundle.Load()
	if b == nil {
		return nil, nil
	}
	if b != s.lastSeen {
		s.cursor = seekFrom(b.Events, t0)
		s.lastSeen = b
	}

	start := s.cursor
	end := start
	for end < len(b.Events) && b.Events[end].Time < t1 {
		end++
	}
	s.cursor = end
	return b, b.Events[start:end]
}

// seekFrom returns the index of the first event with Time >= t0.
func seekFrom(events []types.Event, t0 types.Beat) int {
	return sort.Search(len(events), func(i int) bool {
		return events[i].Time >= t0
	})
}
