package audioengine

import "github.com/resonance-lang/resonance/internal/types"

// VoicePool holds a fixed number of pre-allocated voices for one track
// and implements spec §4.I's deterministic allocation rule: voices come
// from a free list in index order; once exhausted, the oldest non-
// release voice is stolen (LRU by start time).
//
// The free list is a fixed-capacity circular buffer sized to len(voices)
// at construction — Trigger/Mix never grow or reslice it, so neither
// ever allocates on the audio thread.
type VoicePool struct {
	voices []Voice

	freeBuf  []int
	freeHead int
	freeLen  int

	stolen int // diagnostic counter, never read by Trigger/Mix
}

// NewVoicePool builds a pool of n voices, all produced by make — called
// once per track at bundle-load time, never from the audio callback.
func NewVoicePool(kind types.InstrumentKind, sampleRate int, n int) *VoicePool {
	p := &VoicePool{
		voices:  make([]Voice, n),
		freeBuf: make([]int, n),
		freeLen: n,
	}
	for i := 0; i < n; i++ {
		if kind == types.InstrumentDrumKit {
			p.voices[i] = &DrumVoice{}
		} else {
			p.voices[i] = NewTonalVoice(kind, sampleRate)
		}
		p.freeBuf[i] = i
	}
	return p
}

func (p *VoicePool) popFree() (int, bool) {
	if p.freeLen == 0 {
		return 0, false
	}
	idx := p.freeBuf[p.freeHead]
	p.freeHead = (p.freeHead + 1) % len(p.freeBuf)
	p.freeLen--
	return idx, true
}

func (p *VoicePool) pushFree(idx int) {
	tail := (p.freeHead + p.freeLen) % len(p.freeBuf)
	p.freeBuf[tail] = idx
	p.freeLen++
}

// Trigger allocates a voice for params and starts it at startSample. It
// never allocates: the free list and steal search are both pre-sized
// index scans over fixed-capacity storage.
func (p *VoicePool) Trigger(params VoiceParams, startSample int64) {
	if idx, ok := p.popFree(); ok {
		p.voices[idx].Trigger(params, startSample)
		return
	}
	idx := p.steal()
	p.stolen++
	p.voices[idx].Trigger(params, startSample)
}

// Stolen reports how many times this pool has had to steal a voice
// since construction — surfaced by Engine.Stats for the status bar's
// voice-steal diagnostic (never fatal, per spec §7).
func (p *VoicePool) Stolen() int { return p.stolen }

// steal picks a voice to cut short for a new Trigger call. It prefers
// the oldest active voice not in its release phase (spec §4.I); only
// when every active voice is already releasing does it fall back to
// the oldest voice overall. Either pass walks voices in index order so
// ties resolve deterministically on the lowest index, required for
// compile-then-render determinism.
func (p *VoicePool) steal() int {
	oldestNonRelease, oldestAny := -1, -1
	var nonReleaseAt, anyAt int64
	for i, v := range p.voices {
		if !v.Active() {
			continue
		}
		if oldestAny == -1 || v.StartedAt() < anyAt {
			oldestAny = i
			anyAt = v.StartedAt()
		}
		if v.InReleasePhase() {
			continue
		}
		if oldestNonRelease == -1 || v.StartedAt() < nonReleaseAt {
			oldestNonRelease = i
			nonReleaseAt = v.StartedAt()
		}
	}
	if oldestNonRelease != -1 {
		return oldestNonRelease
	}
	if oldestAny != -1 {
		return oldestAny
	}
	return 0
}

// ReleaseAll calls Release on every active voice — used when a section
// or layer change silences a track's sustain, without cutting a drum
// one-shot short (Release is a no-op there by design).
func (p *VoicePool) ReleaseAll() {
	for _, v := range p.voices {
		if v.Active() {
			v.Release()
		}
	}
}

// Mix sums every active voice's next sample and recycles any voice that
// just went idle back onto the free list, in index order.
func (p *VoicePool) Mix() float64 {
	var sum float64
	for i, v := range p.voices {
		if !v.Active() {
			continue
		}
		sum += v.Sample()
		if !v.Active() {
			p.pushFree(i)
		}
	}
	return sum
}
