package sample

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, path string, samples []int, channels, sampleRate int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   samples,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestLoadDecodesMonoWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kick.wav")
	writeTestWAV(t, path, []int{0, 16384, -16384, 0}, 1, 44100)

	p := NewPool()
	buf, err := p.Load(path)
	require.NoError(t, err)
	require.Equal(t, 44100, buf.SampleRate)
	require.Len(t, buf.Data, 4)
	require.InDelta(t, 0.5, buf.Data[1], 0.01)
}

func TestLoadCachesByPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snare.wav")
	writeTestWAV(t, path, []int{100, 200, 300}, 1, 44100)

	p := NewPool()
	first, err := p.Load(path)
	require.NoError(t, err)
	second, err := p.Load(path)
	require.NoError(t, err)
	require.Same(t, first, second, "second load of the same path must hit the cache")
	require.Equal(t, 1, p.Loaded())
}

func TestLoadDownmixesStereo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stereo.wav")
	// Two frames, two channels: (L,R) = (32767,-32768), (0,0)
	writeTestWAV(t, path, []int{32767, -32768, 0, 0}, 2, 48000)

	p := NewPool()
	buf, err := p.Load(path)
	require.NoError(t, err)
	require.Len(t, buf.Data, 2, "stereo input must downmix to mono frame count")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	p := NewPool()
	_, err := p.Load("/nonexistent/path/does-not-exist.wav")
	require.Error(t, err)
}
