// Package sectionctl implements the section/layer controller state
// machine (spec §4.G): current/next section, per-layer enablement, and a
// pending-commit flag per change. Everything queued here only takes
// effect when the caller (internal/runtime, on the audio thread) calls
// CommitAtBoundary at a bar boundary, so performance intents never tear
// a bar mid-playback.
package sectionctl

import (
	"fmt"

	"github.com/resonance-lang/resonance/internal/types"
)

// GraceWindow is the default window before a bar boundary (spec §4.G:
// "default 1/8 beat") within which a late-arriving jump request still
// counts for the imminent boundary instead of slipping to the next one.
const GraceWindow = types.TicksPerBeat / 8

// Controller owns current_section, the pending jump/toggle queue, and
// layer enablement. It is not safe for concurrent use — spec §4.H's
// scheduler is the single thread that reads and commits it.
type Controller struct {
	sections []types.Section
	layers   []types.Layer

	currentIdx int
	pendingIdx *int // requested section jump, nil if none queued

	pendingToggle map[int]bool // layer index -> requested enabled state

	activeScratch []types.Layer // reused by ActiveLayers, never reallocated after New
}

// New builds a Controller starting at the first declared section with
// layers in their declared enabled/disabled state.
func New(sections []types.Section, layers []types.Layer) *Controller {
	return &Controller{
		sections:      sections,
		layers:        append([]types.Layer(nil), layers...),
		pendingToggle: map[int]bool{},
	}
}

// CurrentSection returns the currently active section. Panics if no
// sections were declared — callers must not construct a Controller for
// an empty song.
func (c *Controller) CurrentSection() types.Section {
	return c.sections[c.currentIdx]
}

// CurrentIndex returns the active section's index.
func (c *Controller) CurrentIndex() int { return c.currentIdx }

// ActiveLayers returns every layer currently enabled, in declaration
// order — the order internal/mapping's resolver needs additive layer
// mappings applied in. The returned slice is reused across calls and
// its contents are only valid until the next call on this Controller;
// callers on the audio thread consume it immediately and never retain it.
func (c *Controller) ActiveLayers() []types.Layer {
	c.activeScratch = c.activeScratch[:0]
	for _, l := range c.layers {
		if l.Enabled {
			c.activeScratch = append(c.activeScratch, l)
		}
	}
	return c.activeScratch
}

// AllLayers returns every declared layer, enabled or not.
func (c *Controller) AllLayers() []types.Layer { return c.layers }

// RequestJump queues a section change to the named section, taking
// effect at the next CommitAtBoundary call. A jump replaces the default
// post-length advance (spec §4.G: "A jump replaces that default").
func (c *Controller) RequestJump(name string) error {
	for i, s := range c.sections {
		if s.Name == name {
			idx := i
			c.pendingIdx = &idx
			return nil
		}
	}
	return fmt.Errorf("sectionctl: no such section %q", name)
}

// RequestJumpIndex is RequestJump by index, used when the caller already
// resolved the name (e.g. the compiler's Section slice is index-stable).
func (c *Controller) RequestJumpIndex(idx int) error {
	if idx < 0 || idx >= len(c.sections) {
		return fmt.Errorf("sectionctl: section index %d out of range", idx)
	}
	c.pendingIdx = &idx
	return nil
}

// RequestLayerToggle queues a layer's enabled state, taking effect at the
// next CommitAtBoundary call.
func (c *Controller) RequestLayerToggle(idx int, enabled bool) error {
	if idx < 0 || idx >= len(c.layers) {
		return fmt.Errorf("sectionctl: layer index %d out of range", idx)
	}
	c.pendingToggle[idx] = enabled
	return nil
}

// WithinGrace reports whether a request arriving ticksUntilBoundary
// ticks before the next bar boundary still counts for that boundary
// (spec §4.G's default 1/8-beat grace window), rather than slipping to
// the boundary after. Callers pass this to decide whether a request that
// arrived late in a callback should still be folded into the commit
// about to run.
func WithinGrace(ticksUntilBoundary types.Beat) bool {
	return ticksUntilBoundary >= 0 && ticksUntilBoundary <= GraceWindow
}

// CommitAtBoundary applies every queued change. sectionComplete signals
// that the current section's declared length has just elapsed; when no
// jump is pending, completion advances to the next declared section in
// order, wrapping to the first (spec §4.G's default advance rule).
func (c *Controller) CommitAtBoundary(sectionComplete bool) {
	switch {
	case c.pendingIdx != nil:
		c.currentIdx = *c.pendingIdx
		c.pendingIdx = nil
	case sectionComplete && len(c.sections) > 0:
		c.currentIdx = (c.currentIdx + 1) % len(c.sections)
	}

	for idx, enabled := range c.pendingToggle {
		c.layers[idx].Enabled = enabled
		delete(c.pendingToggle, idx)
	}
}

// HasPendingJump reports whether a section jump is queued for the next
// commit — used by internal/runtime to restart its bar count when a jump
// is about to commit.
func (c *Controller) HasPendingJump() bool { return c.pendingIdx != nil }
