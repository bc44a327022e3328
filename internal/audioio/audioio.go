// Package audioio wires the audio-thread runtime to an actual output
// device. The engine itself (internal/audioengine) only knows how to
// fill a float64 buffer; this package adapts that to oto's streaming
// player, or to a null sink for headless runs (tests and --no-audio).
package audioio

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ebitengine/oto/v3"
)

// Renderer is the minimal surface audioio needs from
// internal/audioengine.Engine — kept as an interface so this package
// doesn't need to import audioengine's full API, and so tests can stub
// it without a real engine.
type Renderer interface {
	Process(out []float64, frames int)
}

const channels = 2 // oto's float32 format is always interleaved; mono is duplicated to stereo

// reader adapts a Renderer into an io.Reader of interleaved stereo
// float32LE samples, the shape oto.NewPlayer consumes. It keeps a small
// fixed-size scratch buffer so Read never allocates after construction.
type reader struct {
	engine Renderer
	mono   []float64
}

func newReader(engine Renderer, frameChunk int) *reader {
	return &reader{engine: engine, mono: make([]float64, frameChunk)}
}

const bytesPerSample = 4 // float32

func (r *reader) Read(p []byte) (int, error) {
	frames := len(p) / (bytesPerSample * channels)
	if frames > len(r.mono) {
		frames = len(r.mono)
	}
	if frames == 0 {
		return 0, nil
	}
	r.engine.Process(r.mono[:frames], frames)

	n := 0
	for i := 0; i < frames; i++ {
		s := float32(r.mono[i])
		bits := math.Float32bits(s)
		binary.LittleEndian.PutUint32(p[n:], bits)
		n += 4
		binary.LittleEndian.PutUint32(p[n:], bits)
		n += 4
	}
	return n, nil
}

// Device streams engine output to the system's default audio output via
// oto. Close stops playback; it does not close the underlying oto
// context (oto contexts are process-global and outlive a single Device).
type Device struct {
	player *oto.Player
}

// Open starts streaming engine's output at sampleRate through oto.
// frameChunk bounds how many frames a single Read call renders — small
// enough to keep latency reasonable, large enough to amortize the call.
func Open(engine Renderer, sampleRate, frameChunk int) (*Device, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	r := newReader(engine, frameChunk)
	p := ctx.NewPlayer(r)
	p.Play()
	return &Device{player: p}, nil
}

func (d *Device) Close() error {
	return d.player.Close()
}

// NullDevice stands in for a Device under --no-audio, where no output
// device is opened at all.
type NullDevice struct{}

func (NullDevice) Close() error { return nil }

// RenderTo headlessly pulls frames samples at a time from engine into a
// throwaway buffer, count times — exercising the render path without
// opening a device. The CLI does not call it; --eval only compiles.
func RenderTo(engine Renderer, frameChunk, count int) {
	buf := make([]float64, frameChunk)
	for i := 0; i < count; i++ {
		engine.Process(buf, frameChunk)
	}
}

var _ io.Reader = (*reader)(nil)
