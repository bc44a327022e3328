package main

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/resonance-lang/resonance/internal/audioio"
	"github.com/resonance-lang/resonance/internal/compiler"
	"github.com/resonance-lang/resonance/internal/intent"
	"github.com/resonance-lang/resonance/internal/miditransport"
	"github.com/resonance-lang/resonance/internal/parser"
	"github.com/resonance-lang/resonance/internal/runtime"
	"github.com/resonance-lang/resonance/internal/scheduler"
	"github.com/resonance-lang/resonance/internal/sectionctl"
	"github.com/resonance-lang/resonance/internal/session"
	"github.com/resonance-lang/resonance/internal/telemetry"
	"github.com/resonance-lang/resonance/internal/tui"
	"github.com/resonance-lang/resonance/internal/types"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// sampleRate and frameChunk are fixed rather than flags — the spec never
// asks for a configurable sample rate, and a variable frameChunk would
// only add an untested knob to a single-binary CLI.
const (
	sampleRate = 48000
	frameChunk = 1024
)

const sessionFile = "resonance-session.json.gz"

// defaultSource is the starting program for a run with no source file —
// enough to render audible output immediately, edited live from there via
// ctrl+p (spec §6).
const defaultSource = `tempo 120
track kick {
  kit: default
  section intro [4 bars] {
    hit: [X . X .]
  }
}
`

type flags struct {
	seed     uint64
	device   string
	noAudio  bool
	evalFile string
	debugLog string
	oscAddr  string
}

func newRootCmd() *cobra.Command {
	var fl flags

	cmd := &cobra.Command{
		Use:           "resonance [file]",
		Short:         "a terminal-native live-coding music instrument",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fl.evalFile != "" {
				return runEval(fl)
			}

			src := defaultSource
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return newExitError(4, fmt.Errorf("resonance: read %s: %w", args[0], err))
				}
				src = string(data)
			}
			return runPerform(fl, src)
		},
	}

	cmd.PersistentFlags().Uint64Var(&fl.seed, "seed", 1, "global determinism seed")
	cmd.PersistentFlags().StringVar(&fl.device, "device", "", "MIDI input device name (fuzzy-matched); empty disables MIDI input")
	cmd.PersistentFlags().BoolVar(&fl.noAudio, "no-audio", false, "run headless, never opening an output device")
	cmd.PersistentFlags().StringVar(&fl.evalFile, "eval", "", "compile FILE and print its event stream as newline-delimited JSON, then exit")
	cmd.PersistentFlags().StringVar(&fl.debugLog, "debug", "", "write debug logs to this file; unset discards them")
	cmd.PersistentFlags().StringVar(&fl.oscAddr, "osc-addr", "", "host:port to stream one-way OSC telemetry to; empty disables it")

	return cmd
}

// runEval compiles fl.evalFile and prints its event stream as
// newline-delimited JSON, one event per line, followed by a trailing
// summary line — a supplement to spec §6's bare "prints the event
// stream" so a shell pipeline can get counts without re-parsing every
// event.
func runEval(fl flags) error {
	data, err := os.ReadFile(fl.evalFile)
	if err != nil {
		return newExitError(4, fmt.Errorf("resonance: read %s: %w", fl.evalFile, err))
	}

	prog, errs := parser.Parse(string(data))
	if errs.HasErrors() {
		return newExitError(2, errs)
	}
	bundle, errs := compiler.Compile(prog, types.Seed(fl.seed))
	if errs.HasErrors() {
		return newExitError(2, errs)
	}

	enc := jsonAPI.NewEncoder(os.Stdout)
	for _, ev := range bundle.Events {
		if err := enc.Encode(ev); err != nil {
			return newExitError(4, fmt.Errorf("resonance: encode event: %w", err))
		}
	}

	summary := struct {
		Summary struct {
			Tempo      float64 `json:"tempo"`
			EventCount int     `json:"eventCount"`
			Seed       uint64  `json:"seed"`
		} `json:"summary"`
	}{}
	summary.Summary.Tempo = bundle.Tempo
	summary.Summary.EventCount = len(bundle.Events)
	summary.Summary.Seed = uint64(bundle.Seed)
	if err := enc.Encode(summary); err != nil {
		return newExitError(4, fmt.Errorf("resonance: encode summary: %w", err))
	}
	return nil
}

// runPerform builds the whole live pipeline — scheduler, runtime, audio
// device, intent processor, optional MIDI input and OSC telemetry — and
// runs the Bubble Tea program until the performer quits.
func runPerform(fl flags, src string) error {
	logFile := setupLogging(fl.debugLog)
	if logFile != nil {
		defer logFile.Close()
	}

	prog, errs := parser.Parse(src)
	if errs.HasErrors() {
		return newExitError(2, errs)
	}
	bundle, errs := compiler.Compile(prog, types.Seed(fl.seed))
	if errs.HasErrors() {
		return newExitError(2, errs)
	}

	sched := scheduler.New(scheduler.DefaultRingCapacity)
	sched.PublishBundle(bundle)

	rt := runtime.New(bundle, sched, sampleRate)

	var device io.Closer
	if fl.noAudio {
		device = audioio.NullDevice{}
	} else {
		d, err := audioio.Open(rt, sampleRate, frameChunk)
		if err != nil {
			return newExitError(3, fmt.Errorf("resonance: open audio device: %w", err))
		}
		device = d
	}
	defer device.Close()

	proc := intent.New(sched, src, countMacros(bundle), len(bundle.Layers))
	ctl := sectionctl.New(bundle.Sections, bundle.Layers)

	store := session.NewFileStore(sessionFile)
	if snap, ok, err := session.Restore(store); err != nil {
		log.Printf("resonance: session restore failed: %v", err)
	} else if ok {
		log.Printf("resonance: previous session saved at %s", snap.SavedAt)
	}
	autosave := session.NewAutoSaveScheduler(store)

	if stop := startTelemetry(fl.oscAddr, ctl); stop != nil {
		defer stop()
	}

	var learnFn func(types.MacroIndex)
	if fl.device != "" {
		if canon, stop := startMIDI(fl.device, proc); canon != nil {
			learnFn = canon.ArmLearn
			defer stop()
		}
	}

	model := tui.New(proc, ctl, countMacros(bundle), rt.Stats, learnFn)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return newExitError(4, fmt.Errorf("resonance: tui: %w", err))
	}

	autosave.Queue(session.Snapshot{
		Source:         proc.CurrentSource(),
		CurrentSection: rt.CurrentSection(),
		Tempo:          bundle.Tempo,
		SavedAt:        time.Now().UTC().Format(time.RFC3339),
	})
	time.Sleep(session.DebounceTime + 100*time.Millisecond)

	return nil
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

// setupLogging mirrors the teacher's main.go: debug logging gated behind
// a file path, routed through tea.LogToFile so it never corrupts the
// alt-screen TUI, discarded entirely otherwise.
func setupLogging(path string) io.Closer {
	if path == "" {
		log.SetOutput(io.Discard)
		return nil
	}
	f, err := tea.LogToFile(path, "debug")
	if err != nil {
		log.Printf("resonance: could not open debug log %q: %v", path, err)
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("debug logging enabled")
	return f
}

// startMIDI resolves device by fuzzy name match and starts listening for
// CC/note messages, canonicalizing them into intent calls against proc.
// A device lookup or listen failure is logged, never fatal — performing
// without a controller attached is always a valid mode. The returned
// Canonicalizer lets the caller arm macro MIDI-CC learn from the TUI.
func startMIDI(device string, proc *intent.Processor) (*miditransport.Canonicalizer, func()) {
	in, err := miditransport.FindInPort(device)
	if err != nil {
		log.Printf("resonance: MIDI device %q not found: %v", device, err)
		return nil, nil
	}
	canon := miditransport.NewCanonicalizer(proc)
	stop, err := miditransport.Listen(in, canon, func(err error) {
		log.Printf("resonance: MIDI listen error: %v", err)
	})
	if err != nil {
		log.Printf("resonance: MIDI listen: %v", err)
		return nil, nil
	}
	return canon, stop
}

// startTelemetry streams section-change diagnostics to addr over OSC at a
// fixed low rate, entirely from the control thread — the audio thread
// never touches the sender, preserving the no-I/O invariant. It only
// resends when the committed section actually changes, so an idle
// performance doesn't flood the listener with duplicate messages.
func startTelemetry(addr string, ctl *sectionctl.Controller) func() {
	if addr == "" {
		return nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		log.Printf("resonance: invalid --osc-addr %q: %v", addr, err)
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Printf("resonance: invalid --osc-addr port %q: %v", portStr, err)
		return nil
	}

	sender := telemetry.NewSender(host, port)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		last := -1
		for {
			select {
			case <-ticker.C:
				idx := ctl.CurrentIndex()
				if idx == last {
					continue
				}
				last = idx
				sender.SendSectionChange(idx, ctl.CurrentSection().Name)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
