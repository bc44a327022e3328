// Package intent implements the two intent channels spec §4.J describes:
// performance intents (macro moves, layer toggles, section jumps, tempo
// changes) that validate and forward as scheduler control-ring messages,
// and structural intents (AST-level source diffs) that go through an
// explicit propose/accept/reject cycle before ever reaching the
// compiler.
package intent

import (
	"fmt"
	"hash/fnv"

	"github.com/resonance-lang/resonance/internal/ast"
	"github.com/resonance-lang/resonance/internal/compiler"
	"github.com/resonance-lang/resonance/internal/compileerr"
	"github.com/resonance-lang/resonance/internal/parser"
	"github.com/resonance-lang/resonance/internal/scheduler"
	"github.com/resonance-lang/resonance/internal/types"
)

// Hash identifies a source revision. Computed from the raw DSL text
// rather than a structural AST walk — two compiles of byte-identical
// source always agree, which is all ProposeDiff/Accept's staleness
// check needs.
type Hash uint64

func hashSource(src string) Hash {
	h := fnv.New64a()
	_, _ = h.Write([]byte(src))
	return Hash(h.Sum64())
}

// Performance intents — validated then forwarded as scheduler.ControlMsg.

type SetMacro struct {
	Index types.MacroIndex
	Value float64
}

type NudgeMacro struct {
	Index types.MacroIndex
	Delta float64
}

type ToggleLayer struct {
	Index   int
	Enabled bool
}

type JumpSection struct {
	Index int
}

type SetTempo struct {
	BPM float64
}

// Proposal is a pending structural intent: a full replacement source
// text paired with the revision it was diffed against and a short
// human summary for the TUI to display before the user accepts it.
type Proposal struct {
	BeforeHash Hash
	Source     string
	AfterAST   *ast.Program
	Summary    string
}

// Processor holds the current accepted source/AST/macro snapshot and
// turns both intent channels into effects: performance intents become
// control-ring pushes, structural intents become Proposals that only
// take effect on an explicit Accept.
type Processor struct {
	sched        *scheduler.Scheduler
	currentSrc   string
	currentHash  Hash
	macroCount   int
	layerCount   int
}

// New builds a Processor bound to sched, seeded with the accepted
// source text and the macro and layer counts of the currently compiled
// bundle (used to range-check performance intents).
func New(sched *scheduler.Scheduler, initialSource string, macroCount, layerCount int) *Processor {
	return &Processor{
		sched:       sched,
		currentSrc:  initialSource,
		currentHash: hashSource(initialSource),
		macroCount:  macroCount,
		layerCount:  layerCount,
	}
}

// CurrentHash returns the hash of the last accepted source.
func (p *Processor) CurrentHash() Hash { return p.currentHash }

// CurrentSource returns the last accepted source text, the editor's
// starting point for the next structural edit.
func (p *Processor) CurrentSource() string { return p.currentSrc }

var errOutOfRange = fmt.Errorf("intent: index out of range")

// ApplySetMacro validates and forwards a SetMacro intent. Value is
// clamped to [0,1] per spec §4.F's macro range before it reaches the
// control ring.
func (p *Processor) ApplySetMacro(i SetMacro) error {
	if int(i.Index) < 0 || int(i.Index) >= p.macroCount {
		return errOutOfRange
	}
	v := clamp01(i.Value)
	if !p.sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgMacroSet, MacroIdx: i.Index, Value: v}) {
		return fmt.Errorf("intent: control ring full, macro set dropped")
	}
	return nil
}

// ApplyNudgeMacro is SetMacro expressed as a relative delta; the caller
// (the audio thread, draining the ring) is responsible for clamping the
// running value — NudgeMacro only range-checks the index here.
func (p *Processor) ApplyNudgeMacro(i NudgeMacro) error {
	if int(i.Index) < 0 || int(i.Index) >= p.macroCount {
		return errOutOfRange
	}
	if !p.sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgMacroNudge, MacroIdx: i.Index, Value: i.Delta}) {
		return fmt.Errorf("intent: control ring full, macro nudge dropped")
	}
	return nil
}

func (p *Processor) ApplyToggleLayer(i ToggleLayer) error {
	if i.Index < 0 || i.Index >= p.layerCount {
		return errOutOfRange
	}
	if !p.sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgLayerToggle, LayerIdx: i.Index, Enabled: i.Enabled}) {
		return fmt.Errorf("intent: control ring full, layer toggle dropped")
	}
	return nil
}

func (p *Processor) ApplyJumpSection(i JumpSection) error {
	if i.Index < 0 {
		return errOutOfRange
	}
	if !p.sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgSectionJump, SectionIdx: i.Index}) {
		return fmt.Errorf("intent: control ring full, section jump dropped")
	}
	return nil
}

func (p *Processor) ApplySetTempo(i SetTempo) error {
	if i.BPM <= 0 {
		return fmt.Errorf("intent: tempo must be positive")
	}
	if !p.sched.PushControl(scheduler.ControlMsg{Kind: scheduler.MsgTempoSet, BPM: i.BPM}) {
		return fmt.Errorf("intent: control ring full, tempo set dropped")
	}
	return nil
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

// ProposeDiff parses newSource and returns a Proposal for the user to
// review — it never mutates the Processor's accepted state. summary is
// a short caller-supplied description (e.g. a line-diff count) shown
// alongside the proposal.
func (p *Processor) ProposeDiff(newSource, summary string) (Proposal, compileerr.List) {
	prog, errs := parser.Parse(newSource)
	if errs.HasErrors() {
		return Proposal{}, errs
	}
	return Proposal{
		BeforeHash: p.currentHash,
		Source:     newSource,
		AfterAST:   prog,
		Summary:    summary,
	}, nil
}

var errStaleProposal = fmt.Errorf("intent: proposal is stale, source changed since it was made")

// Accept compiles prop.AfterAST and, if successful, installs the new
// bundle on the scheduler and advances the accepted source/hash.
// Proposals whose BeforeHash no longer matches the current accepted
// hash are rejected as stale (spec §4.J) without attempting to compile.
func (p *Processor) Accept(prop Proposal, seed types.Seed) (*types.Bundle, compileerr.List) {
	if prop.BeforeHash != p.currentHash {
		return nil, compileerr.List{compileerr.New(compileerr.SemanticError, compileerr.Span{}, errStaleProposal.Error())}
	}

	bundle, errs := compiler.Compile(prop.AfterAST, seed)
	if errs.HasErrors() {
		return nil, errs
	}

	p.sched.PublishBundle(bundle)
	p.currentSrc = prop.Source
	p.currentHash = hashSource(prop.Source)
	p.macroCount = countMacros(bundle)
	p.layerCount = len(bundle.Layers)
	return bundle, errs
}

func countMacros(b *types.Bundle) int {
	n := 0
	for _, m := range b.Macros {
		if m.Name != "" {
			n++
		}
	}
	return n
}

// Reject discards prop without affecting the Processor's state. It
// exists as an explicit method (rather than "just don't call Accept")
// so the TUI has a single place to log a rejected-proposal event.
func (p *Processor) Reject(prop Proposal) {}
