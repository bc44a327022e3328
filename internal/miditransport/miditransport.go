// Package miditransport is one of the input threads described by the
// spec: it owns a MIDI input port, canonicalizes note and control-change
// messages into intent.Processor calls, and never touches the audio
// thread directly. Device lookup is adapted from the teacher's
// internal/midiconnector, which does the same truncate-then-match name
// resolution for MIDI output ports.
package miditransport

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/resonance-lang/resonance/internal/intent"
	"github.com/resonance-lang/resonance/internal/types"
)

// Devices lists available MIDI input port names.
func Devices() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// FindInPort resolves a saved device name against the currently
// connected input ports using the teacher's three-pass strategy: exact
// match on a 3-word truncation, then prefix, then substring. This lets a
// performer's saved device name survive small renames across OS
// upgrades or firmware updates.
func FindInPort(name string) (drivers.In, error) {
	want := truncate(strings.ToLower(name), 3)
	ins := midi.GetInPorts()

	for _, in := range ins {
		if strings.EqualFold(strings.ToLower(in.String()), want) {
			return in, nil
		}
	}
	for _, in := range ins {
		if strings.HasPrefix(strings.ToLower(in.String()), want) {
			return in, nil
		}
	}
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), want) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("miditransport: no input port matching %q", name)
}

func truncate(s string, words int) string {
	fields := strings.Fields(s)
	if len(fields) > words {
		fields = fields[:words]
	}
	return strings.Join(fields, " ")
}

// NoteBinding maps a MIDI note number to either a section jump or a
// layer toggle — the supplemented "MIDI note triggers" feature: a
// performer can stomp a section change or flip a layer from a pad
// controller without touching the keyboard.
type NoteBinding struct {
	Note        uint8
	SectionIdx  int
	IsLayer     bool
	LayerIdx    int
	LayerOnHit  bool
}

// CCMapping maps a single MIDI CC number to a macro index, the "macro
// MIDI-CC learn" supplemented feature.
type CCMapping struct {
	CC    uint8
	Macro types.MacroIndex
}

// Canonicalizer turns raw MIDI messages into Processor calls. It holds
// only the learn tables, never audio-thread state, so it's safe to run
// on its own goroutine fed directly by the driver's listen callback.
type Canonicalizer struct {
	proc *intent.Processor

	mu         sync.Mutex
	ccLearn    map[uint8]types.MacroIndex
	noteBind   map[uint8]NoteBinding
	armedMacro types.MacroIndex
	learnArmed bool
}

func NewCanonicalizer(proc *intent.Processor) *Canonicalizer {
	return &Canonicalizer{
		proc:     proc,
		ccLearn:  map[uint8]types.MacroIndex{},
		noteBind: map[uint8]NoteBinding{},
	}
}

// LearnCC records that cc should drive macro from now on.
func (c *Canonicalizer) LearnCC(m CCMapping) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ccLearn[m.CC] = m.Macro
}

// ArmLearn arms macro to bind to whichever CC number arrives next. The
// performer triggers this from the TUI (ctrl+l on the active macro), then
// moves a hardware control; HandleMessage completes the bind on the
// next CC it sees and disarms itself.
func (c *Canonicalizer) ArmLearn(macro types.MacroIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armedMacro = macro
	c.learnArmed = true
}

// BindNote records a note-to-action binding.
func (c *Canonicalizer) BindNote(b NoteBinding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noteBind[b.Note] = b
}

// HandleMessage canonicalizes one raw MIDI message into the matching
// Processor call, if any learn/bind table entry applies. It returns nil
// for messages with no matching entry, rather than treating them as
// errors, since a controller sends plenty of traffic (clock, aftertouch)
// this instrument has no use for.
func (c *Canonicalizer) HandleMessage(msg []byte) error {
	m := midi.Message(msg)

	var ch, cc, val, note, vel uint8
	if m.GetControlChange(&ch, &cc, &val) {
		c.mu.Lock()
		if c.learnArmed {
			c.ccLearn[cc] = c.armedMacro
			c.learnArmed = false
			c.mu.Unlock()
			return nil
		}
		macroIdx, ok := c.ccLearn[cc]
		c.mu.Unlock()
		if !ok {
			return nil
		}
		return c.proc.ApplySetMacro(intent.SetMacro{Index: macroIdx, Value: float64(val) / 127.0})
	}

	if m.GetNoteOn(&ch, &note, &vel) && vel > 0 {
		c.mu.Lock()
		b, ok := c.noteBind[note]
		c.mu.Unlock()
		if !ok {
			return nil
		}
		if b.IsLayer {
			return c.proc.ApplyToggleLayer(intent.ToggleLayer{Index: b.LayerIdx, Enabled: b.LayerOnHit})
		}
		return c.proc.ApplyJumpSection(intent.JumpSection{Index: b.SectionIdx})
	}

	return nil
}

// Listen opens in and forwards every incoming message to HandleMessage
// until stop() is called. Canonicalization errors (e.g. an out-of-range
// macro index from a stale binding) are reported via onErr rather than
// panicking the listener goroutine, since a single bad message must
// never take down the input thread mid-performance.
func Listen(in drivers.In, c *Canonicalizer, onErr func(error)) (stop func(), err error) {
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("miditransport: open port: %w", err)
	}
	stopFn, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		if err := c.HandleMessage(msg); err != nil && onErr != nil {
			onErr(err)
		}
	})
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("miditransport: listen: %w", err)
	}
	return stopFn, nil
}
