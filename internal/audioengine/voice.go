// Package audioengine is the allocation-free real-time audio-thread
// runtime (spec §4.I): voice synthesis, mixing, FX, and the master
// limiter. Every type here is sized at construction time; Process never
// allocates, locks (beyond what internal/scheduler already hands it), or
// performs I/O.
package audioengine

import (
	"math"

	"github.com/resonance-lang/resonance/internal/types"
)

// DefaultSampleRate is the sample rate this engine is tuned for; other
// rates work because filter/envelope time constants are computed from
// the rate passed to NewEngine, not from this constant.
const DefaultSampleRate = 48000

// ADSRState tracks an envelope's current phase.
type ADSRState int

const (
	ADSRIdle ADSRState = iota
	ADSRAttack
	ADSRDecay
	ADSRSustain
	ADSRRelease
)

// Envelope is a sample-driven ADSR shared by every pitched voice kind.
// Times are expressed in samples; Advance computes each stage's level
// from the sample position within that stage.
type Envelope struct {
	state            ADSRState
	level            float64
	pos              int
	attack           int
	decay            int
	sustain          float64
	release          int
	releaseStartVal  float64
}

// Configure sets the envelope's stage lengths (in samples) and sustain
// level (0..1). Safe to call before every Trigger; allocates nothing.
func (e *Envelope) Configure(attackSamples, decaySamples int, sustain float64, releaseSamples int) {
	e.attack = attackSamples
	e.decay = decaySamples
	e.sustain = sustain
	e.release = releaseSamples
}

func (e *Envelope) Trigger() {
	e.state = ADSRAttack
	e.pos = 0
}

func (e *Envelope) Release() {
	if e.state == ADSRIdle {
		return
	}
	e.state = ADSRRelease
	e.pos = 0
	e.releaseStartVal = e.level
}

func (e *Envelope) Active() bool { return e.state != ADSRIdle }

// Releasing reports whether the envelope is in its release stage.
func (e *Envelope) Releasing() bool { return e.state == ADSRRelease }

// Advance steps the envelope by one sample and returns its current
// level (0..1).
func (e *Envelope) Advance() float64 {
	switch e.state {
	case ADSRAttack:
		if e.attack > 0 {
			e.level = float64(e.pos) / float64(e.attack)
		} else {
			e.level = 1
		}
		e.pos++
		if e.pos >= e.attack {
			e.state = ADSRDecay
			e.pos = 0
		}
	case ADSRDecay:
		if e.decay > 0 {
			t := float64(e.pos) / float64(e.decay)
			e.level = 1 - t*(1-e.sustain)
		} else {
			e.level = e.sustain
		}
		e.pos++
		if e.pos >= e.decay {
			if e.sustain > 0 {
				e.state = ADSRSustain
			} else {
				e.state = ADSRRelease
				e.pos = 0
				e.releaseStartVal = e.level
			}
		}
	case ADSRSustain:
		e.level = e.sustain
	case ADSRRelease:
		if e.release > 0 {
			t := float64(e.pos) / float64(e.release)
			e.level = e.releaseStartVal * (1 - t)
		} else {
			e.level = 0
		}
		e.pos++
		if e.pos >= e.release || e.level <= 0.0005 {
			e.state = ADSRIdle
			e.level = 0
		}
	}
	return e.level
}

// VoiceParams carries everything a Trigger call needs. It is a flat
// value type so dispatch never allocates.
type VoiceParams struct {
	MidiNote   int
	Velocity   float64
	Cutoff     float64 // normalized 0..1, instrument-specific meaning
	Resonance  float64
	Attack     float64 // seconds
	Decay      float64 // seconds
	Sustain    float64 // level 0..1
	Release    float64 // seconds
	KitSlot    int
	Sample     *PCMBuffer // non-nil when the kit slot has a loaded sample
}

// Voice is the common interface every instrument kind implements.
type Voice interface {
	Sample() float64
	Active() bool
	Trigger(params VoiceParams, startSample int64)
	Release()
	Reset()
	StartedAt() int64
	InReleasePhase() bool
}

// PCMBuffer is an immutable, pre-decoded sample — the shape
// internal/sample's pool hands voices. Pointer-shared, never copied or
// mutated by a voice.
type PCMBuffer struct {
	Data       []float32
	SampleRate int
}

// baseVoice factors the fields and StartedAt/Reset bookkeeping every
// voice kind shares.
type baseVoice struct {
	active    bool
	startedAt int64
}

func (b *baseVoice) Active() bool     { return b.active }
func (b *baseVoice) StartedAt() int64 { return b.startedAt }
func (b *baseVoice) Reset() {
	b.active = false
	b.startedAt = 0
}

// DrumVoice plays a one-shot sample (or, absent a loaded sample, a
// synthesized noise-burst placeholder) at a fixed velocity scale — drums
// never respond to Release(), they finish naturally (spec §4.I, grounded
// on the vi-fighter DrumVoice's identical one-shot contract).
type DrumVoice struct {
	baseVoice
	buf      *PCMBuffer
	pos      int
	velocity float64
	seedLCG  uint64 // synthesized-noise fallback generator state
}

func (v *DrumVoice) Trigger(p VoiceParams, startSample int64) {
	v.active = true
	v.startedAt = startSample
	v.pos = 0
	v.velocity = p.Velocity
	v.buf = p.Sample
	v.seedLCG = uint64(startSample)*2862933555777941757 + 3037000493
}

func (v *DrumVoice) Release() {} // one-shot; no-op by design

// InReleasePhase is always false: a one-shot has no release stage to be in.
func (v *DrumVoice) InReleasePhase() bool { return false }

func (v *DrumVoice) Sample() float64 {
	if !v.active {
		return 0
	}
	if v.buf != nil {
		if v.pos >= len(v.buf.Data) {
			v.active = false
			return 0
		}
		s := float64(v.buf.Data[v.pos]) * v.velocity
		v.pos++
		return s
	}
	return v.synthesizedSample()
}

// synthesizedSample is a deterministic decaying noise burst used when no
// sample is loaded for the kit slot, so the engine is always audible
// without requiring asset files during development or testing.
const drumBurstSamples = 2400 // 50ms @ 48kHz

func (v *DrumVoice) synthesizedSample() float64 {
	if v.pos >= drumBurstSamples {
		v.active = false
		return 0
	}
	v.seedLCG = v.seedLCG*6364136223846793005 + 1442695040888963407
	n := (float64(v.seedLCG>>11) / float64(1<<53)) * 2 - 1
	decay := 1 - float64(v.pos)/float64(drumBurstSamples)
	v.pos++
	return n * decay * decay * v.velocity
}

// TonalVoice covers bass/poly/pluck/noise — an oscillator per
// types.InstrumentKind shaped by a shared ADSR. Grounded on the
// vi-fighter TonalVoice's oscillator-plus-envelope structure.
type TonalVoice struct {
	baseVoice
	kind       types.InstrumentKind
	freq       float64
	velocity   float64
	phase      float64
	cutoff     float64
	resonance  float64
	filterMem  float64
	env        Envelope
	sampleRate int
}

func NewTonalVoice(kind types.InstrumentKind, sampleRate int) *TonalVoice {
	return &TonalVoice{kind: kind, sampleRate: sampleRate}
}

func (v *TonalVoice) Trigger(p VoiceParams, startSample int64) {
	v.active = true
	v.startedAt = startSample
	v.velocity = p.Velocity
	v.freq = midiToFreq(p.MidiNote)
	v.cutoff = p.Cutoff
	v.resonance = p.Resonance
	v.phase = 0
	v.filterMem = 0
	v.env.Configure(
		secondsToSamples(p.Attack, v.sampleRate),
		secondsToSamples(p.Decay, v.sampleRate),
		p.Sustain,
		secondsToSamples(p.Release, v.sampleRate),
	)
	v.env.Trigger()
}

func (v *TonalVoice) Release() { v.env.Release() }

func (v *TonalVoice) InReleasePhase() bool { return v.env.Releasing() }

func (v *TonalVoice) Sample() float64 {
	if !v.active {
		return 0
	}
	raw := v.oscillate()
	env := v.env.Advance()
	if !v.env.Active() {
		v.active = false
	}
	filtered := v.lowpass(raw)
	return filtered * env * v.velocity
}

func (v *TonalVoice) oscillate() float64 {
	v.phase += v.freq / float64(v.sampleRate)
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch v.kind {
	case types.InstrumentMonoBass:
		return sawtooth(v.phase)
	case types.InstrumentPolyPad:
		return math.Sin(2*math.Pi*v.phase) + 0.3*math.Sin(4*math.Pi*v.phase)
	case types.InstrumentPluck:
		return triangle(v.phase) * (1 - v.env.pos2Frac())
	default: // InstrumentNoise
		return noiseFromPhase(v.phase)
	}
}

// lowpass is a one-pole filter whose coefficient is derived from cutoff
// (0..1) and shaped slightly by resonance via simple feedback — not a
// biquad, but allocation-free and stable across the full cutoff range.
func (v *TonalVoice) lowpass(x float64) float64 {
	coeff := 0.01 + v.cutoff*0.9
	v.filterMem += coeff * (x - v.filterMem)
	return v.filterMem*(1+v.resonance*0.3) - v.filterMem*v.resonance*0.3*v.filterMem
}

func sawtooth(phase float64) float64 { return 2*phase - 1 }

func triangle(phase float64) float64 {
	if phase < 0.5 {
		return 4*phase - 1
	}
	return 3 - 4*phase
}

// pos2Frac exposes envelope progress as a coarse 0..1 fraction for
// Pluck's percussive amplitude taper, without adding a second envelope.
func (e *Envelope) pos2Frac() float64 {
	total := e.attack + e.decay
	if total <= 0 {
		return 0
	}
	if e.pos >= total {
		return 1
	}
	return float64(e.pos) / float64(total)
}

func noiseFromPhase(phase float64) float64 {
	x := uint64(phase * 1e9)
	x = x*2862933555777941757 + 3037000493
	return (float64(x>>11)/float64(1<<53))*2 - 1
}

func midiToFreq(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

func secondsToSamples(seconds float64, sampleRate int) int {
	if seconds <= 0 {
		return 0
	}
	return int(seconds * float64(sampleRate))
}
