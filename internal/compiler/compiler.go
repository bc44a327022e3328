// Package compiler runs the three-pass DSL compiler (spec §4.E):
// Resolution binds names to stable ids, Expansion turns pattern lines
// into events, and the Scheduling bake concatenates sections along the
// song timeline into a single sorted event vector. All traversals walk
// declaration order — no map iteration ever reaches the output — so the
// same source and seed always compile to byte-identical bundles.
package compiler

import (
	"sort"

	"github.com/resonance-lang/resonance/internal/ast"
	"github.com/resonance-lang/resonance/internal/compileerr"
	"github.com/resonance-lang/resonance/internal/pitch"
	"github.com/resonance-lang/resonance/internal/seedrng"
	"github.com/resonance-lang/resonance/internal/types"
)

// velocityHumanizeAmount bounds the seeded jitter expansion applies to
// every struck step's velocity: +/- 4% keeps a pattern recognizably the
// same performance across reseeds while avoiding machine-gun uniformity.
const velocityHumanizeAmount = 0.04

// drumChoiceVariants is the number of round-robin kit-slot alternates
// expansion picks between for a drum hit, the tracker convention of
// cycling a few velocity-layer samples per hit so a repeated step doesn't
// always trigger byte-identical playback.
const drumChoiceVariants = 3

// Compile runs all three passes over prog and returns the resulting
// Bundle, or a non-empty compileerr.List if resolution/semantic checks
// failed (expansion and baking are skipped once resolution fails, since
// they depend on a consistent track/macro id table).
func Compile(prog *ast.Program, seed types.Seed) (*types.Bundle, compileerr.List) {
	r, errs := resolve(prog)
	if errs.HasErrors() {
		return nil, errs
	}

	bundle := &types.Bundle{
		Tempo:        prog.Tempo.BPM,
		Tracks:       r.tracks,
		Sections:     r.sections,
		Layers:       r.layers,
		BaseMappings: r.baseMappings,
		Seed:         seed,
		StringTable:  r.stringTable,
	}
	copy(bundle.Macros[:], r.macros[:])

	events, expandErrs := expand(prog, r, seed)
	errs = append(errs, expandErrs...)
	if expandErrs.HasErrors() {
		return nil, errs
	}

	bundle.Events = bake(events)
	return bundle, errs
}

// resolved holds the output of the Resolution pass: stable ids and a
// declaration-order string table, ready for Expansion to consume.
type resolved struct {
	tracks       []types.Track
	trackIdx     map[string]int // track name -> index into tracks, declaration order
	sections     []types.Section
	layers       []types.Layer
	macros       [types.MaxMacros]types.Macro
	macroIdx     map[string]types.MacroIndex
	baseMappings []types.Mapping
	stringTable  []string
}

func (r *resolved) intern(s string) {
	for _, existing := range r.stringTable {
		if existing == s {
			return
		}
	}
	r.stringTable = append(r.stringTable, s)
}

func resolve(prog *ast.Program) (*resolved, compileerr.List) {
	var errs compileerr.List
	r := &resolved{
		trackIdx: map[string]int{},
		macroIdx: map[string]types.MacroIndex{},
	}

	for i, td := range prog.Tracks {
		if _, dup := r.trackIdx[td.Name]; dup {
			errs = append(errs, compileerr.New(compileerr.ResolutionError, toSpan(td.Span), "duplicate track name %q", td.Name))
			continue
		}
		r.trackIdx[td.Name] = i
		r.intern(td.Name)

		kind, kitName := instrumentKind(td.Instrument)
		track := types.Track{
			ID:            types.TrackID(i),
			Name:          td.Name,
			Instrument:    kind,
			KitName:       kitName,
			ParamDefaults: map[types.ParamID]float64{},
		}
		for _, sd := range td.Sections {
			track.SectionsDeclared = append(track.SectionsDeclared, sd.Name)
		}
		r.tracks = append(r.tracks, track)
	}

	for i, md := range prog.Macros {
		if i >= types.MaxMacros {
			errs = append(errs, compileerr.New(compileerr.SemanticError, toSpan(md.Span), "too many macros, max %d", types.MaxMacros))
			break
		}
		idx := types.MacroIndex(i)
		r.macroIdx[md.Name] = idx
		v := md.Initial
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		r.macros[idx] = types.Macro{Name: md.Name, Value: v}
		r.intern(md.Name)
	}

	for _, mp := range prog.Maps {
		m, ok := resolveMapping(mp, r, &errs)
		if ok {
			r.baseMappings = append(r.baseMappings, m)
		}
	}

	// section declarations are gathered per track so scheduling can walk
	// them in source order later, but spec §4.F's section overrides are
	// resolved now so the bundle carries fully-resolved Mapping values.
	for _, td := range prog.Tracks {
		for _, sd := range td.Sections {
			sec := types.Section{Name: sd.Name, LengthBars: sd.LengthBars}
			for _, mo := range sd.MappingOverrides {
				m, ok := resolveMapping(mo, r, &errs)
				if ok {
					sec.MappingOverrides = append(sec.MappingOverrides, m)
				}
			}
			r.sections = append(r.sections, sec)
		}
	}

	for _, ld := range prog.Layers {
		layer := types.Layer{Name: ld.Name, Enabled: ld.Enabled}
		for _, mp := range ld.Mappings {
			m, ok := resolveMapping(mp, r, &errs)
			if ok {
				layer.MappingAdditions = append(layer.MappingAdditions, m)
			}
		}
		r.layers = append(r.layers, layer)
		r.intern(ld.Name)
	}

	return r, errs
}

func instrumentKind(d ast.InstrumentDecl) (types.InstrumentKind, string) {
	switch d.Kind {
	case "kit":
		return types.InstrumentDrumKit, d.Kit
	case "bass":
		return types.InstrumentMonoBass, ""
	case "poly":
		return types.InstrumentPolyPad, ""
	case "pluck":
		return types.InstrumentPluck, ""
	default:
		return types.InstrumentNoise, ""
	}
}

func resolveMapping(md ast.MappingDecl, r *resolved, errs *compileerr.List) (types.Mapping, bool) {
	macroIdx, ok := r.macroIdx[md.MacroName]
	if !ok {
		*errs = append(*errs, compileerr.New(compileerr.ResolutionError, toSpan(md.Span), "mapping references undeclared macro %q", md.MacroName))
		return types.Mapping{}, false
	}

	target := types.MappingTarget{Param: paramByName(md.ParamName)}
	if md.TrackName != "" {
		idx, ok := r.trackIdx[md.TrackName]
		if !ok {
			*errs = append(*errs, compileerr.New(compileerr.ResolutionError, toSpan(md.Span), "mapping references undeclared track %q", md.TrackName))
			return types.Mapping{}, false
		}
		target.TrackID = types.TrackID(idx)
		target.HasTrack = true
	}

	return types.Mapping{
		MacroName: md.MacroName,
		MacroIdx:  macroIdx,
		Target:    target,
		Lo:        md.Lo,
		Hi:        md.Hi,
		Curve:     curveByName(md.CurveName),
	}, true
}

func paramByName(name string) types.ParamID {
	switch name {
	case "velocity":
		return types.ParamVelocity
	case "pitch":
		return types.ParamPitch
	case "cutoff", "filter", "filter_cutoff":
		return types.ParamFilterCutoff
	case "resonance":
		return types.ParamResonance
	case "pan":
		return types.ParamPan
	case "reverb", "reverb_send":
		return types.ParamReverbSend
	case "delay", "delay_send":
		return types.ParamDelaySend
	case "drive":
		return types.ParamDrive
	case "attack":
		return types.ParamAttack
	case "decay":
		return types.ParamDecay
	case "sustain":
		return types.ParamSustain
	case "release":
		return types.ParamRelease
	default:
		return types.ParamFilterCutoff
	}
}

func curveByName(name string) types.Curve {
	switch name {
	case "log":
		return types.CurveLog
	case "exp":
		return types.CurveExp
	case "smoothstep":
		return types.CurveSmoothstep
	default:
		return types.CurveLinear
	}
}

func toSpan(s ast.Span) compileerr.Span {
	return compileerr.Span{Line: s.Line, Col: s.Col, Len: s.Len}
}

// expand turns every pattern line of every section into events, per
// spec §4.E pass 2: a line's step grid divides length_bars*beats_per_bar
// evenly across its step count, X/x/. map to hit/half/rest, an optional
// vel[] array overrides velocities element-wise with "." repeating the
// line's previous explicit value and missing trailing entries keeping
// the step's own default.
func expand(prog *ast.Program, r *resolved, seed types.Seed) ([]types.Event, compileerr.List) {
	var errs compileerr.List
	var events []types.Event

	for _, td := range prog.Tracks {
		trackIdx, ok := r.trackIdx[td.Name]
		if !ok {
			continue
		}
		trackID := types.TrackID(trackIdx)
		sectionStart := types.Beat(0)

		for _, sd := range td.Sections {
			sectionLen := types.Bars(sd.LengthBars)
			for _, line := range sd.Patterns {
				lineEvents, lineErrs := expandPatternLine(line, trackID, sectionStart, sectionLen, seed)
				events = append(events, lineEvents...)
				errs = append(errs, lineErrs...)
			}
			sectionStart += sectionLen
		}
	}

	return events, errs
}

func expandPatternLine(line ast.PatternLine, trackID types.TrackID, sectionStart, sectionLen types.Beat, seed types.Seed) ([]types.Event, compileerr.List) {
	var errs compileerr.List
	n := len(line.Steps)
	if n == 0 {
		return nil, errs
	}
	stepLen := sectionLen / types.Beat(n)

	var events []types.Event
	lastVel := 1.0
	for i, step := range line.Steps {
		t := sectionStart + stepLen*types.Beat(i)
		vel, ok := velForStep(line.Vel, i, step, &lastVel)
		if !ok {
			continue
		}

		var payload types.Payload
		switch step.Kind {
		case ast.StepRest:
			continue
		case ast.StepHit:
			payload = types.Payload{Kind: types.PayloadDrumHit, Velocity: vel}
		case ast.StepSoft:
			payload = types.Payload{Kind: types.PayloadDrumHit, Velocity: vel * 0.5}
		case ast.StepPitch:
			if step.Pitch == "" {
				continue
			}
			midi, err := pitch.NameToMidi(step.Pitch)
			if err != nil {
				errs = append(errs, compileerr.New(compileerr.SemanticError, toSpan(step.Span), "invalid pitch literal %q: %v", step.Pitch, err))
				continue
			}
			payload = types.Payload{Kind: types.PayloadPitchedNote, MidiNumber: midi, Velocity: vel}
		}

		payload.Velocity = humanizeVelocity(payload.Velocity, seed, trackID, t)
		if payload.Kind == types.PayloadDrumHit {
			payload.KitSlot = seedrng.Intn(uint64(seed), uint64(trackID), int64(t), seedrng.RoleDrumChoice, drumChoiceVariants)
		}

		events = append(events, types.Event{
			Time:     t,
			Duration: stepLen,
			TrackID:  trackID,
			Payload:  payload,
		})
	}
	return events, errs
}

// humanizeVelocity nudges vel by a seeded draw in
// [-velocityHumanizeAmount, +velocityHumanizeAmount], keyed by (seed,
// trackID, beatIndex) so the same source and seed always produce the
// same jitter, clamped to a valid velocity.
func humanizeVelocity(vel float64, seed types.Seed, trackID types.TrackID, beatIndex types.Beat) float64 {
	draw := seedrng.Float64(uint64(seed), uint64(trackID), int64(beatIndex), seedrng.RoleVelocityHumanize)
	jitter := (draw*2 - 1) * velocityHumanizeAmount
	out := vel + vel*jitter
	if out < 0 {
		return 0
	}
	return out
}

// velForStep resolves one step's velocity per spec §4.E's vel[] rules:
// an explicit numeric entry sets and remembers the value, "." reuses the
// last explicit value on the line (1.0 before any), and a missing
// trailing entry uses the default of 1.0 (the compiler has no per-track
// default, so 1.0 is the instrument-level default).
func velForStep(vel []ast.VelCell, i int, step ast.Step, lastVel *float64) (float64, bool) {
	if step.Kind == ast.StepRest {
		return 0, true
	}
	if i >= len(vel) {
		return 1.0, true
	}
	cell := vel[i]
	if !cell.Has {
		return *lastVel, true
	}
	*lastVel = cell.Value
	return cell.Value, true
}

// bake concatenates and stably sorts events on the composite key
// (time, track_id, payload-kind-ordinal), per spec §4.E pass 3.
// Declaration order within equal keys is preserved by sort.SliceStable,
// keeping the whole compile deterministic.
func bake(events []types.Event) []types.Event {
	out := make([]types.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Less(out[j])
	})
	return out
}
