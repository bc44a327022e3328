// Package telemetry sends one-way OSC messages describing performance
// state to external listeners (a lighting rig, a visualizer, a second
// laptop running SuperCollider for extra voices). It never receives or
// mutates core state — the control thread is the only writer to a
// running Bundle, per spec. Adapted from the teacher's
// sendOSCMessage/OSCMessageConfig pattern in internal/model/model.go.
package telemetry

import (
	"log"

	"github.com/hypebeast/go-osc/osc"

	"github.com/resonance-lang/resonance/internal/types"
)

// MessageConfig bundles an OSC address, its positional parameters, and
// an optional log line, mirroring the teacher's OSCMessageConfig.
type MessageConfig struct {
	Address    string
	Parameters []interface{}
	LogFormat  string
	LogArgs    []interface{}
}

// Sender owns a single outbound OSC client. A nil *Sender is valid and
// every Send* method becomes a no-op, the same "OSC not configured"
// guard the teacher's sendOSCMessage uses for m.oscClient == nil, so
// callers never need to branch on whether telemetry is enabled.
type Sender struct {
	client *osc.Client
}

// NewSender dials host:port for outbound OSC traffic. go-osc clients are
// fire-and-forget UDP, so this never blocks or fails on an unreachable
// host until the first Send.
func NewSender(host string, port int) *Sender {
	return &Sender{client: osc.NewClient(host, port)}
}

func (s *Sender) send(cfg MessageConfig) {
	if s == nil || s.client == nil {
		return
	}
	msg := osc.NewMessage(cfg.Address)
	for _, p := range cfg.Parameters {
		msg.Append(p)
	}
	if err := s.client.Send(msg); err != nil {
		log.Printf("telemetry: send to %s failed: %v", cfg.Address, err)
		return
	}
	if cfg.LogFormat != "" {
		log.Printf(cfg.LogFormat, cfg.LogArgs...)
	}
}

// SendTick reports the current musical position once per beat boundary.
func (s *Sender) SendTick(beat types.Beat, sectionIdx int) {
	s.send(MessageConfig{
		Address:    "/resonance/tick",
		Parameters: []interface{}{float32(beat.Float64()), int32(sectionIdx)},
		LogFormat:  "OSC tick sent: beat %.3f section %d",
		LogArgs:    []interface{}{beat.Float64(), sectionIdx},
	})
}

// SendSectionChange reports a committed section boundary.
func (s *Sender) SendSectionChange(sectionIdx int, name string) {
	s.send(MessageConfig{
		Address:    "/resonance/section",
		Parameters: []interface{}{int32(sectionIdx), name},
		LogFormat:  "OSC section change sent: %d %q",
		LogArgs:    []interface{}{sectionIdx, name},
	})
}

// SendMacro reports a macro's resolved value after a performance intent
// applies it, not its raw input — external listeners want what the
// instrument is actually doing, not the controller twist that caused it.
func (s *Sender) SendMacro(idx types.MacroIndex, value float64) {
	s.send(MessageConfig{
		Address:    "/resonance/macro",
		Parameters: []interface{}{int32(idx), float32(value)},
		LogFormat:  "OSC macro sent: %d %.3f",
		LogArgs:    []interface{}{idx, value},
	})
}

// SendVoiceCount reports the number of currently active voices per
// track, useful for a visualizer that wants to pulse with density.
func (s *Sender) SendVoiceCount(trackIdx, active int) {
	s.send(MessageConfig{
		Address:    "/resonance/voices",
		Parameters: []interface{}{int32(trackIdx), int32(active)},
	})
}
