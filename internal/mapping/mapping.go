// Package mapping implements the macro/mapping resolver (spec §4.F): for
// a given (param, section, active layers) context it folds base mappings,
// section overrides, and layer additions into a single parameter value,
// applying each mapping's curve before summation. Resolution is pure and
// allocation-free so it can run on the audio thread at control rate.
package mapping

import (
	"math"

	"github.com/resonance-lang/resonance/internal/types"
)

// Curve evaluates a normalized [0,1] macro position into a normalized
// [0,1] contribution. Each is strictly monotone with f(0)=0, f(1)=1.
func ApplyCurve(c types.Curve, t float64) float64 {
	switch c {
	case types.CurveLog:
		return logCurve(t)
	case types.CurveExp:
		return expCurve(t)
	case types.CurveSmoothstep:
		return smoothstep(t)
	default:
		return t
	}
}

func logCurve(t float64) float64 {
	return math.Log(1+9*t) / math.Log(10)
}

func expCurve(t float64) float64 {
	return (math.Pow(10, t) - 1) / 9
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// sameKey reports whether a and b identify the same (macro, target)
// mapping slot for override/stack resolution — section overrides replace
// same-key base mappings; layer additions never replace, only stack.
// Callers only compare mappings already filtered to the same param, so
// param itself need not be part of the comparison.
func sameKey(a, b types.Mapping) bool {
	return a.MacroName == b.MacroName && a.Target.HasTrack == b.Target.HasTrack && a.Target.TrackID == b.Target.TrackID
}

// Context is the (section, active layers) state the resolver needs beyond
// the static bundle — spec §4.F's "context = {current_section,
// active_layers[]}".
type Context struct {
	Section *types.Section // nil if no section active
	Layers  []types.Layer  // only enabled layers need be passed, but callers may pass all and rely on Enabled
}

// Resolve computes the effective value of param on track, given the
// track's declared default, the bundle's base mappings, and ctx's
// section overrides and active layer additions.
//
// Steps (spec §4.F):
//  1. start from trackDefault
//  2. sum curved contributions of base mappings targeting param
//  3. section overrides replace same-key base mappings before summation
//  4. enabled layer mappings stack additively on top
//
// Runs on the audio thread at control rate and must not allocate: base
// and override mappings are matched with a linear same-key scan instead
// of building an intermediate map.
func Resolve(trackDefault float64, track types.TrackID, param types.ParamID, base []types.Mapping, macros [types.MaxMacros]types.Macro, ctx Context) float64 {
	var overrides []types.Mapping
	if ctx.Section != nil {
		overrides = ctx.Section.MappingOverrides
	}

	sum := trackDefault
	// lo/hi accumulate as the achievable envelope of the additive stack
	// across every contributing mapping's own declared range: the combined
	// minimum/maximum if every contributing macro sat at its extreme.
	lo, hi, haveRange := 0.0, 0.0, false
	accumulate := func(m types.Mapping) {
		sum += contribution(m, macros)
		lo += m.Lo
		hi += m.Hi
		haveRange = true
	}

	for _, m := range base {
		if !targets(m, track, param) {
			continue
		}
		if overriddenBy(m, overrides, track, param) {
			continue
		}
		accumulate(m)
	}

	for _, m := range overrides {
		if !targets(m, track, param) {
			continue
		}
		accumulate(m)
	}

	for _, layer := range ctx.Layers {
		if !layer.Enabled {
			continue
		}
		for _, m := range layer.MappingAdditions {
			if !targets(m, track, param) {
				continue
			}
			accumulate(m)
		}
	}

	if !haveRange {
		return sum
	}
	if sum < lo {
		return lo
	}
	if sum > hi {
		return hi
	}
	return sum
}

// overriddenBy reports whether some override targeting (track, param)
// shares m's (macro, target) key, meaning m must be skipped rather than
// summed alongside it.
func overriddenBy(m types.Mapping, overrides []types.Mapping, track types.TrackID, param types.ParamID) bool {
	for _, o := range overrides {
		if targets(o, track, param) && sameKey(m, o) {
			return true
		}
	}
	return false
}

func targets(m types.Mapping, track types.TrackID, param types.ParamID) bool {
	if m.Target.Param != param {
		return false
	}
	if m.Target.HasTrack && m.Target.TrackID != track {
		return false
	}
	return true
}

func macroValue(m types.Mapping, macros [types.MaxMacros]types.Macro) float64 {
	idx := int(m.MacroIdx)
	if idx < 0 || idx >= types.MaxMacros {
		return 0
	}
	return macros[idx].Value
}

func contribution(m types.Mapping, macros [types.MaxMacros]types.Macro) float64 {
	t := macroValue(m, macros)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	curved := ApplyCurve(m.Curve, t)
	return m.Lo + curved*(m.Hi-m.Lo)
}

