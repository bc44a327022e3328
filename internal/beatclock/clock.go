// Package beatclock implements the time base (spec §4.A): mapping
// wall-clock audio samples to musical beats at a given tempo, with tempo
// changes gated to bar boundaries. It is the audio thread's own clock —
// Advance is called once per callback and must not allocate.
package beatclock

import (
	"errors"

	"github.com/resonance-lang/resonance/internal/types"
)

// ErrMidBarTempoChange is returned when ApplyNow is called anywhere but a
// bar boundary. The caller should queue the request with QueueTempo
// instead; Clock itself holds at most one pending tempo change and
// applies it the next time Advance crosses a bar line.
var ErrMidBarTempoChange = errors.New("beatclock: tempo change rejected mid-bar")

// Clock advances beat position sample-accurately from a fixed tempo, with
// tempo changes quantized to bar boundaries per spec §4.A.
type Clock struct {
	bpm     float64
	pos     types.Beat
	pending *float64 // queued bpm, applied on next bar crossing
}

// New creates a Clock at the given initial tempo, positioned at beat 0.
func New(bpm float64) *Clock {
	return &Clock{bpm: bpm}
}

// BPM returns the clock's current tempo.
func (c *Clock) BPM() float64 { return c.bpm }

// Position returns the current beat position.
func (c *Clock) Position() types.Beat { return c.pos }

// QueueTempo requests a tempo change. It always succeeds immediately — the
// change is staged and only takes effect on the next bar boundary crossed
// by Advance, per spec §4.A ("Tempo changes are applied on bar boundaries
// only; mid-bar writes are rejected"). Rejection, in this design, means the
// write is deferred rather than returning an error to a real-time caller;
// ApplyNow exists for the one call site (compile-time constant tempo
// declarations) where an immediate, unquantized set is correct.
func (c *Clock) QueueTempo(bpm float64) {
	v := bpm
	c.pending = &v
}

// ApplyNow sets tempo immediately, bypassing quantization. Only valid
// before playback starts (e.g. applying a freshly compiled bundle's
// declared tempo at position 0); returns ErrMidBarTempoChange if called
// while the clock is not at a bar boundary.
func (c *Clock) ApplyNow(bpm float64) error {
	if !c.AtBarBoundary() {
		return ErrMidBarTempoChange
	}
	c.bpm = bpm
	return nil
}

// AtBarBoundary reports whether the current position falls exactly on a
// bar line.
func (c *Clock) AtBarBoundary() bool {
	barTicks := int64(types.BeatsPerBar) * int64(types.TicksPerBeat)
	return int64(c.pos)%barTicks == 0
}

// Advance moves the clock forward by the beats corresponding to n sample
// frames at the given sample rate: beats = n * bpm / (60 * sampleRate),
// per spec §4.A. Any pending tempo change is applied the instant Advance
// crosses (or lands exactly on) a bar boundary.
func (c *Clock) Advance(frames int, sampleRate int) types.Beat {
	if sampleRate <= 0 || frames <= 0 {
		return c.pos
	}
	beatsFloat := float64(frames) * c.bpm / (60.0 * float64(sampleRate))
	deltaTicks := int64(beatsFloat * float64(types.TicksPerBeat))

	barTicks := int64(types.BeatsPerBar) * int64(types.TicksPerBeat)
	before := int64(c.pos)
	after := before + deltaTicks
	c.pos = types.Beat(after)

	if c.pending != nil {
		// A bar boundary is crossed if the integer bar index changed;
		// starting exactly on one and moving away from it is not a crossing.
		crossedBar := after/barTicks != before/barTicks
		if crossedBar {
			c.bpm = *c.pending
			c.pending = nil
		}
	}
	return c.pos
}

// SeekTo jumps the clock to an arbitrary beat position, used only when
// re-seeding the event cursor after a bundle swap (spec §4.H). It never
// changes tempo.
func (c *Clock) SeekTo(b types.Beat) { c.pos = b }
