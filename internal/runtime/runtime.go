// Package runtime is the audio-thread integration layer: it implements
// audioio.Renderer by draining the control ring, advancing the beat
// clock and section controller, resolving each event's mapped
// parameters, and dispatching into the audioengine. This is the "caller
// (the scheduler integration layer)" internal/audioengine's
// ResolvedParams doc comment refers to, and it's the one place internal/scheduler,
// internal/sectionctl, internal/mapping, and internal/audioengine meet.
package runtime

import (
	"github.com/resonance-lang/resonance/internal/audioengine"
	"github.com/resonance-lang/resonance/internal/beatclock"
	"github.com/resonance-lang/resonance/internal/mapping"
	"github.com/resonance-lang/resonance/internal/scheduler"
	"github.com/resonance-lang/resonance/internal/sectionctl"
	"github.com/resonance-lang/resonance/internal/types"
)

// controlBatchSize bounds how many control-ring messages are drained per
// audio callback — equal to DefaultRingCapacity so a full ring drains
// in one callback and a burst of macro moves never straddles two
// callbacks half-applied.
const controlBatchSize = scheduler.DefaultRingCapacity

// trackTimeline is one track's own section offsets, reconstructed from
// the bundle's flat Sections list and each track's declared section
// count (the compiler appends each track's sections to the bundle in
// declaration order, so this reconstruction is exact).
type trackTimeline struct {
	sections []types.Section
	starts   []types.Beat // starts[i] is sections[i]'s offset on this track's own timeline
	total    types.Beat
}

func (tl trackTimeline) sectionAt(t types.Beat) *types.Section {
	if tl.total == 0 || len(tl.sections) == 0 {
		return nil
	}
	t = t % tl.total
	for i := len(tl.starts) - 1; i >= 0; i-- {
		if t >= tl.starts[i] {
			return &tl.sections[i]
		}
	}
	return &tl.sections[0]
}

// Runtime owns every piece of mutable performance state that isn't
// either the immutable Bundle or the lock-free scheduler handoff: the
// beat clock, section/layer controller, running macro table, and the
// audioengine doing the actual sample rendering.
type Runtime struct {
	sched  *scheduler.Scheduler
	clock  *beatclock.Clock
	ctl    *sectionctl.Controller
	engine *audioengine.Engine

	sampleRate    int
	macros        [types.MaxMacros]types.Macro
	timelines     []trackTimeline
	barsInSection int

	ctrlBuf []scheduler.ControlMsg
}

// New builds a Runtime from bundle's initial state. The clock, section
// controller, engine (one voice pool per track), per-track section
// timelines and macro table are built from this bundle only. Events of a
// bundle published later through the scheduler are dispatched against
// these same structures: they are not rebuilt, and events on tracks
// beyond the ones the engine was built with are dropped.
func New(bundle *types.Bundle, sched *scheduler.Scheduler, sampleRate int) *Runtime {
	kinds := make([]types.InstrumentKind, len(bundle.Tracks))
	for i, tr := range bundle.Tracks {
		kinds[i] = tr.Instrument
	}

	r := &Runtime{
		sched:      sched,
		clock:      beatclock.New(bundle.Tempo),
		ctl:        sectionctl.New(bundle.Sections, bundle.Layers),
		engine:     audioengine.NewEngine(kinds, sampleRate),
		sampleRate: sampleRate,
		macros:     bundle.Macros,
		ctrlBuf:    make([]scheduler.ControlMsg, controlBatchSize),
	}
	r.timelines = buildTimelines(bundle)
	return r
}

func buildTimelines(bundle *types.Bundle) []trackTimeline {
	timelines := make([]trackTimeline, len(bundle.Tracks))
	cursor := 0
	for ti, tr := range bundle.Tracks {
		n := len(tr.SectionsDeclared)
		if cursor+n > len(bundle.Sections) {
			n = len(bundle.Sections) - cursor
		}
		secs := bundle.Sections[cursor : cursor+n]
		cursor += n

		tl := trackTimeline{sections: secs, starts: make([]types.Beat, len(secs))}
		var offset types.Beat
		for i, s := range secs {
			tl.starts[i] = offset
			offset += types.Bars(s.LengthBars)
		}
		tl.total = offset
		timelines[ti] = tl
	}
	return timelines
}

// applyControl drains pending control-ring messages and folds each into
// the Runtime's own state — the only place outside intent.Processor
// that interprets a ControlMsg's Kind.
func (r *Runtime) applyControl() {
	n := r.sched.DrainControl(r.ctrlBuf)
	for i := 0; i < n; i++ {
		msg := r.ctrlBuf[i]
		switch msg.Kind {
		case scheduler.MsgMacroSet:
			if int(msg.MacroIdx) >= 0 && int(msg.MacroIdx) < types.MaxMacros {
				r.macros[msg.MacroIdx].Value = clamp01(msg.Value)
			}
		case scheduler.MsgMacroNudge:
			if int(msg.MacroIdx) >= 0 && int(msg.MacroIdx) < types.MaxMacros {
				r.macros[msg.MacroIdx].Value = clamp01(r.macros[msg.MacroIdx].Value + msg.Value)
			}
		case scheduler.MsgSectionJump:
			_ = r.ctl.RequestJumpIndex(msg.SectionIdx)
		case scheduler.MsgLayerToggle:
			_ = r.ctl.RequestLayerToggle(msg.LayerIdx, msg.Enabled)
		case scheduler.MsgTempoSet:
			r.clock.QueueTempo(msg.BPM)
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// crossedBarBoundary reports whether advancing the clock from t0 to t1
// crossed a bar line, mirroring beatclock.Clock.Advance's own crossing
// check. A fractional-tick advance essentially never lands exactly on a
// bar line, so this checks for crossing rather than exact landing.
func crossedBarBoundary(t0, t1 types.Beat) bool {
	if t1 <= t0 {
		return false
	}
	barTicks := int64(types.BeatsPerBar) * int64(types.TicksPerBeat)
	before, after := int64(t0), int64(t1)
	return after/barTicks != before/barTicks
}

// Process implements audioio.Renderer: it's called once per audio
// callback with the frame count the output device wants. It never
// allocates past Runtime construction.
func (r *Runtime) Process(out []float64, frames int) {
	r.applyControl()

	t0 := r.clock.Position()
	t1 := r.clock.Advance(frames, r.sampleRate)
	if crossedBarBoundary(t0, t1) {
		r.barsInSection++
		complete := r.barsInSection >= r.ctl.CurrentSection().LengthBars
		if complete || r.ctl.HasPendingJump() {
			r.barsInSection = 0
		}
		r.ctl.CommitAtBoundary(complete)
	}

	bundle, events := r.sched.Advance(t0, t1)
	if bundle != nil {
		for _, ev := range events {
			r.dispatch(bundle, ev)
		}
	}

	r.engine.Process(out, frames)
}

func (r *Runtime) dispatch(bundle *types.Bundle, ev types.Event) {
	if int(ev.TrackID) < 0 || int(ev.TrackID) >= len(bundle.Tracks) {
		return
	}
	track := bundle.Tracks[ev.TrackID]

	var section *types.Section
	if int(ev.TrackID) < len(r.timelines) {
		section = r.timelines[ev.TrackID].sectionAt(ev.Time)
	}
	ctx := mapping.Context{Section: section, Layers: r.ctl.ActiveLayers()}

	resolve := func(param types.ParamID, def float64) float64 {
		return mapping.Resolve(def, ev.TrackID, param, bundle.BaseMappings, r.macros, ctx)
	}

	resolved := audioengine.ResolvedParams{
		Cutoff:    resolve(types.ParamFilterCutoff, track.ParamDefaults[types.ParamFilterCutoff]),
		Resonance: resolve(types.ParamResonance, track.ParamDefaults[types.ParamResonance]),
		Attack:    resolve(types.ParamAttack, track.ParamDefaults[types.ParamAttack]),
		Decay:     resolve(types.ParamDecay, track.ParamDefaults[types.ParamDecay]),
		Sustain:   resolve(types.ParamSustain, track.ParamDefaults[types.ParamSustain]),
		Release:   resolve(types.ParamRelease, track.ParamDefaults[types.ParamRelease]),
	}
	r.engine.Dispatch(int(ev.TrackID), ev, resolved)
}

// Stats exposes the audio engine's diagnostic counters for the status
// bar.
func (r *Runtime) Stats() audioengine.Stats { return r.engine.Stats() }

// CurrentSection reports the section controller's committed index, for
// telemetry and the TUI status bar.
func (r *Runtime) CurrentSection() int { return r.ctl.CurrentIndex() }

// MacroValue returns a macro's current running value.
func (r *Runtime) MacroValue(idx types.MacroIndex) float64 {
	if int(idx) < 0 || int(idx) >= types.MaxMacros {
		return 0
	}
	return r.macros[idx].Value
}
