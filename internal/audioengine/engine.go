package audioengine

import "github.com/resonance-lang/resonance/internal/types"

// TrackVoices pairs a track's voice pool with its per-track FX sends, so
// Engine.Process can walk tracks in declaration order (determinism) and
// render each one independently before summing to the mix bus.
type TrackVoices struct {
	Pool  *VoicePool
	Drive float64 // 0..1
	Pan   float64 // -1..1; Process renders mono and does not read it
}

// Engine owns one VoicePool per declared track, the shared send FX, and
// the master limiter. Everything is sized at NewEngine time from the
// bundle's track count and spec's per-track voice maximum; Process
// never grows any of it.
type Engine struct {
	tracks     []*TrackVoices
	reverb     *Reverb
	delay      *Delay
	limiter    *Limiter
	sampleRate int64
	sampleClk  int64 // monotonic sample counter, used as voice StartedAt
}

// NewEngine builds an Engine for trackKinds (in declaration order,
// matching types.Bundle.Tracks), each with types.MaxVoicesPerTrack
// voices.
func NewEngine(trackKinds []types.InstrumentKind, sampleRate int) *Engine {
	e := &Engine{
		reverb:     NewReverb(),
		delay:      NewDelay(sampleRate), // up to 1s delay time
		limiter:    NewLimiter(sampleRate),
		sampleRate: int64(sampleRate),
	}
	for _, kind := range trackKinds {
		e.tracks = append(e.tracks, &TrackVoices{
			Pool: NewVoicePool(kind, sampleRate, types.MaxVoicesPerTrack),
		})
	}
	e.reverb.Configure(0.2)
	e.delay.Configure(0.35, 0.15)
	return e
}

// ConfigureSend sets the reverb and delay send mix levels — called from
// the control thread via a control-ring message, never from Process.
func (e *Engine) ConfigureSend(reverbMix, delayFeedback, delayMix float64) {
	e.reverb.Configure(reverbMix)
	e.delay.Configure(delayFeedback, delayMix)
}

// Dispatch triggers a voice on the given track for ev; it never releases
// one. trackIdx is an index into the Engine's tracks, which callers
// derive from types.Bundle.Tracks order; an out-of-range index is
// ignored.
func (e *Engine) Dispatch(trackIdx int, ev types.Event, resolved ResolvedParams) {
	if trackIdx < 0 || trackIdx >= len(e.tracks) {
		return
	}
	tv := e.tracks[trackIdx]
	params := VoiceParams{
		MidiNote:  ev.Payload.MidiNumber,
		Velocity:  ev.Payload.Velocity,
		Cutoff:    resolved.Cutoff,
		Resonance: resolved.Resonance,
		Attack:    resolved.Attack,
		Decay:     resolved.Decay,
		Sustain:   resolved.Sustain,
		Release:   resolved.Release,
		KitSlot:   ev.Payload.KitSlot,
		Sample:    resolved.Sample,
	}
	tv.Pool.Trigger(params, e.sampleClk)
}

// ResolvedParams is the subset of internal/mapping's resolved parameter
// values a voice trigger needs — computed by the caller (the scheduler
// integration layer) once per event, not by Engine itself, keeping this
// package free of a dependency on internal/mapping.
type ResolvedParams struct {
	Cutoff, Resonance          float64
	Attack, Decay, Sustain, Release float64
	Sample                     *PCMBuffer
}

// Process renders frames samples of mono output into out (len(out) must
// be >= frames). It sums every track's voice pool, applies per-track
// drive, feeds the shared reverb/delay sends, and runs the master
// limiter — spec §4.I step 6.
func (e *Engine) Process(out []float64, frames int) {
	for i := 0; i < frames; i++ {
		var bus float64
		for _, tv := range e.tracks {
			s := tv.Pool.Mix()
			if tv.Drive > 0 {
				s = Drive(s, tv.Drive)
			}
			bus += s
		}
		bus = e.reverb.Process(bus)
		bus = e.delay.Process(bus)
		out[i] = e.limiter.Process(bus)
		e.sampleClk++
	}
}

// SampleClock returns the engine's monotonic sample counter, used by
// callers to convert a beat position to the sample count voices record
// as StartedAt for LRU stealing.
func (e *Engine) SampleClock() int64 { return e.sampleClk }

// ReleaseTrack releases every active voice on trackIdx without cutting
// one-shot drum voices short (DrumVoice.Release is a no-op).
func (e *Engine) ReleaseTrack(trackIdx int) {
	if trackIdx < 0 || trackIdx >= len(e.tracks) {
		return
	}
	e.tracks[trackIdx].Pool.ReleaseAll()
}

// Stats is a point-in-time diagnostic snapshot, cheap enough to sample
// from the control thread on a UI tick without touching Process.
type Stats struct {
	VoicesStolen int
}

// Stats sums the per-track voice-steal counters across every track.
func (e *Engine) Stats() Stats {
	var total int
	for _, tv := range e.tracks {
		total += tv.Pool.Stolen()
	}
	return Stats{VoicesStolen: total}
}
