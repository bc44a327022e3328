// Package tui is the performance surface: a Bubble Tea model dispatching
// the key bindings onto intent.Processor calls, and a status bar showing
// mode, play state, section, voice steals, and the active macro as a
// color-graded meter. Its key
// dispatch (a switch on msg.String()) and its own 30fps redraw tick are
// adapted from the teacher's internal/input.HandleKeyInput and
// main.go's tickWaveform; the meter's HCL gradient (go-colorful) and
// profile-aware rendering (termenv) follow how the teacher's views
// package styles its own level meters.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"

	"github.com/resonance-lang/resonance/internal/audioengine"
	"github.com/resonance-lang/resonance/internal/intent"
	"github.com/resonance-lang/resonance/internal/sectionctl"
	"github.com/resonance-lang/resonance/internal/types"
)

// Mode distinguishes editing the source buffer, reviewing a pending
// structural proposal, and performing with the accepted source.
type Mode int

const (
	ModePerform Mode = iota
	ModeEdit
	ModeReview
)

// redrawFPS matches the teacher's tickWaveform(30) UI refresh rate.
const redrawFPS = 30

type tickMsg struct{}

func tickRedraw() tea.Cmd {
	return tea.Tick(time.Second/redrawFPS, func(time.Time) tea.Msg { return tickMsg{} })
}

// Model is the whole performance-surface state. It owns no audio-thread
// data — only what's needed to translate keystrokes into intent calls
// and render a status bar.
type Model struct {
	proc  *intent.Processor
	ctl   *sectionctl.Controller
	stats func() audioengine.Stats
	learn func(types.MacroIndex)

	mode        Mode
	focus       int
	playing     bool
	showHelp    bool
	activeMacro types.MacroIndex
	macroValues [types.MaxMacros]float64
	macroCount  int

	editBuf string

	pendingProposal intent.Proposal
	summaryInput    textinput.Model

	width, height int
	lastErr       error
	lastStatus    string
}

// New builds a Model bound to proc and ctl, seeded with macroCount, the
// number of named macros in the current bundle (F-key selection accepts
// f1-f8 regardless of it). stats reports
// engine-side diagnostics (e.g. voice steals) for the status bar; learn
// arms the next incoming MIDI CC to bind to a macro, and is nil when no
// MIDI device is attached — both may be nil for headless/no-audio runs.
func New(proc *intent.Processor, ctl *sectionctl.Controller, macroCount int, stats func() audioengine.Stats, learn func(types.MacroIndex)) *Model {
	ti := textinput.New()
	ti.Placeholder = "describe this change"
	ti.CharLimit = 120

	return &Model{
		proc:         proc,
		ctl:          ctl,
		stats:        stats,
		learn:        learn,
		mode:         ModePerform,
		macroCount:   macroCount,
		editBuf:      proc.CurrentSource(),
		summaryInput: ti,
	}
}

func (m *Model) Init() tea.Cmd {
	return tickRedraw()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		return m, tickRedraw()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.mode == ModeReview {
		return m.handleReviewKey(msg)
	}
	if m.mode == ModeEdit {
		return m.handleEditKey(msg)
	}

	switch {
	case key == "ctrl+q":
		return m, tea.Quit

	case key == "ctrl+p":
		m.mode = ModeEdit
		m.editBuf = m.proc.CurrentSource()
		return m, nil

	case key == "ctrl+r":
		m.editBuf = m.proc.CurrentSource()
		m.proposeReview()
		return m, m.summaryInput.Focus()

	case key == "ctrl+l":
		if m.learn == nil {
			m.lastErr = fmt.Errorf("tui: no MIDI device attached, nothing to learn")
			return m, nil
		}
		m.learn(m.activeMacro)
		m.lastErr = nil
		m.lastStatus = fmt.Sprintf("learn armed for F%d — move a MIDI CC", int(m.activeMacro)+1)
		return m, nil

	case key == "tab":
		m.focus = (m.focus + 1) % 3
		return m, nil

	case key == " ":
		m.playing = !m.playing
		return m, nil

	case key == "?":
		m.showHelp = !m.showHelp
		return m, nil

	case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
		idx, _ := strconv.Atoi(key)
		if err := m.proc.ApplyJumpSection(intent.JumpSection{Index: idx - 1}); err != nil {
			m.lastErr = err
		}
		return m, nil

	case strings.HasPrefix(key, "f") && len(key) >= 2:
		n, err := strconv.Atoi(key[1:])
		if err == nil && n >= 1 && n <= 8 {
			m.activeMacro = types.MacroIndex(n - 1)
			m.lastErr = nil
		}
		return m, nil

	case key == "up":
		m.nudgeActiveMacro(0.05)
		return m, nil

	case key == "down":
		m.nudgeActiveMacro(-0.05)
		return m, nil
	}

	return m, nil
}

func (m *Model) nudgeActiveMacro(delta float64) {
	if err := m.proc.ApplyNudgeMacro(intent.NudgeMacro{Index: m.activeMacro, Delta: delta}); err != nil {
		m.lastErr = err
		return
	}
	v := m.macroValues[m.activeMacro] + delta
	m.macroValues[m.activeMacro] = clamp01(v)
}

func (m *Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+q":
		return m, tea.Quit

	case "ctrl+p":
		m.mode = ModePerform
		return m, nil

	case "ctrl+r":
		m.proposeReview()
		return m, m.summaryInput.Focus()

	case "backspace":
		if len(m.editBuf) > 0 {
			m.editBuf = m.editBuf[:len(m.editBuf)-1]
		}
		return m, nil

	case "enter":
		m.editBuf += "\n"
		return m, nil
	}

	if msg.Type == tea.KeyRunes {
		m.editBuf += string(msg.Runes)
	}
	return m, nil
}

// handleReviewKey drives the propose/accept/reject cycle for a pending
// structural edit. Enter commits it; esc discards it and returns to the
// edit buffer for another pass; everything else goes to the summary field.
func (m *Model) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+q":
		return m, tea.Quit

	case "esc":
		m.proc.Reject(m.pendingProposal)
		m.summaryInput.Blur()
		m.mode = ModeEdit
		m.lastStatus = "proposal rejected"
		return m, nil

	case "enter":
		m.acceptProposal()
		return m, nil
	}

	var cmd tea.Cmd
	m.summaryInput, cmd = m.summaryInput.Update(msg)
	return m, cmd
}

// proposeReview compiles the edit buffer into a Proposal and puts the
// model into ModeReview so a performer confirms the summary before it
// lands. Compile errors never reach review — they report in place and
// leave the performer on the edit buffer.
func (m *Model) proposeReview() {
	prop, errs := m.proc.ProposeDiff(m.editBuf, "")
	if errs.HasErrors() {
		m.lastErr = fmt.Errorf("compile: %s", errs.Error())
		return
	}
	m.pendingProposal = prop
	m.lastErr = nil
	m.summaryInput.SetValue("")
	m.mode = ModeReview
}

// acceptProposal commits the pending proposal with whatever summary the
// performer typed, then returns to performing with the new bundle.
func (m *Model) acceptProposal() {
	prop := m.pendingProposal
	prop.Summary = m.summaryInput.Value()

	bundle, errs := m.proc.Accept(prop, types.Seed(1))
	if errs.HasErrors() {
		m.lastErr = fmt.Errorf("compile: %s", errs.Error())
		return
	}
	m.macroCount = countActiveMacros(bundle)
	m.lastErr = nil
	m.lastStatus = "recompiled"
	m.summaryInput.Blur()
	m.mode = ModePerform
}

func countActiveMacros(b *types.Bundle) int {
	n := 0
	for _, mc := range b.Macros {
		if mc.Name != "" {
			n++
		}
	}
	return n
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

var (
	statusStyle = lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("15")).Padding(0, 1)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	meterLow  = colorful.Color{R: 0.1, G: 0.3, B: 0.9}
	meterHigh = colorful.Color{R: 0.95, G: 0.2, B: 0.15}

	colorProfile = termenv.ColorProfile()
)

const meterWidth = 20

// macroMeter renders a horizontal bar for value (0..1), colored along an
// HCL gradient from meterLow to meterHigh so a performer can read
// intensity at a glance rather than just the printed number.
func macroMeter(value float64) string {
	value = clamp01(value)
	filled := int(value*meterWidth + 0.5)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", meterWidth-filled)

	c := meterLow.BlendHcl(meterHigh, value)
	termColor := colorProfile.Color(c.Hex())
	return termenv.String(bar).Foreground(termColor).String()
}

func (m *Model) View() string {
	var b strings.Builder

	modeStr := "PERFORM"
	switch m.mode {
	case ModeEdit:
		modeStr = "EDIT"
	case ModeReview:
		modeStr = "REVIEW"
	}
	playStr := "stopped"
	if m.playing {
		playStr = "playing"
	}
	stolen := 0
	if m.stats != nil {
		stolen = m.stats().VoicesStolen
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf("[%s] %s  section=%d  macro F%d=%.2f  stolen=%d",
		modeStr, playStr, m.ctl.CurrentIndex()+1, int(m.activeMacro)+1, m.macroValues[m.activeMacro], stolen)))
	b.WriteString("\n")
	b.WriteString(macroMeter(m.macroValues[m.activeMacro]))
	b.WriteString("\n")

	if m.mode == ModeEdit {
		b.WriteString(m.editBuf)
		b.WriteString("\n")
	}

	if m.mode == ModeReview {
		b.WriteString(dimStyle.Render("accept structural change? enter=accept  esc=reject"))
		b.WriteString("\n")
		b.WriteString(m.summaryInput.View())
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString(errStyle.Render(m.lastErr.Error()))
		b.WriteString("\n")
	} else if m.lastStatus != "" {
		b.WriteString(dimStyle.Render(m.lastStatus))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(dimStyle.Render("ctrl+q quit  ctrl+r propose  ctrl+l learn CC  ctrl+p edit/perform  tab focus  space play/stop  1-9 section  f1-f8 macro  up/down nudge  ? help"))
	}

	return b.String()
}
