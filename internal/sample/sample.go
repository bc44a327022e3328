// Package sample loads and pools the PCM sample data drum kits play.
// Decoding itself is out of scope for the real-time runtime (spec
// Non-goals exclude a sample editor/decoder UI) — this package's job is
// narrower: load a WAV once, hand out an immutable, cached
// *audioengine.PCMBuffer (shared by pointer, not reference-counted), and
// let multiple kit slots across multiple bundles share the same decoded
// buffer without re-reading the file.
package sample

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/wav"

	"github.com/resonance-lang/resonance/internal/audioengine"
)

// Pool loads WAV files on demand and caches the decoded result, keyed by
// absolute path, for the lifetime of the process. Safe for concurrent
// use from the control thread (loads happen off the audio thread;
// voices only ever read the already-decoded, immutable buffer).
type Pool struct {
	mu    sync.Mutex
	cache map[string]*audioengine.PCMBuffer
}

func NewPool() *Pool {
	return &Pool{cache: map[string]*audioengine.PCMBuffer{}}
}

// Load returns the decoded buffer for path, decoding and caching it on
// first use. Concurrent Load calls for the same path block on each
// other rather than double-decoding.
func (p *Pool) Load(path string) (*audioengine.PCMBuffer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sample: resolve path %q: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if buf, ok := p.cache[abs]; ok {
		return buf, nil
	}

	buf, err := decode(abs)
	if err != nil {
		return nil, err
	}
	p.cache[abs] = buf
	return buf, nil
}

// Loaded reports how many distinct files are currently cached.
func (p *Pool) Loaded() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

func decode(path string) (*audioengine.PCMBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sample: open %q: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("sample: %q is not a valid WAV file", path)
	}
	d.ReadInfo()

	intBuf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("sample: decode %q: %w", path, err)
	}

	floats := intBuf.AsFloatBuffer()
	data := make([]float32, len(floats.Data))
	for i, v := range floats.Data {
		data[i] = float32(v)
	}

	return &audioengine.PCMBuffer{
		Data:       downmixToMono(data, intBuf.Format.NumChannels),
		SampleRate: intBuf.Format.SampleRate,
	}, nil
}

// downmixToMono averages interleaved channels into a single mono stream
// — voices render mono internally (spec §4.I's Process writes a single
// output bus per callback; stereo panning, where used, is applied after
// mixing, not per-sample-source).
func downmixToMono(data []float32, channels int) []float32 {
	if channels <= 1 {
		return data
	}
	out := make([]float32, len(data)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
