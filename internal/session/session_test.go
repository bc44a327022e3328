package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/resonance-lang/resonance/internal/types"
	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissingReturnsNilNil(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json.gz"))
	data, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sub", "data.json.gz"))
	require.NoError(t, store.Save([]byte(`{"hello":"world"}`)))
	data, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, `{"hello":"world"}`, string(data))
}

func TestRestoreRoundTripsSnapshot(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "data.json.gz"))
	snap := Snapshot{Source: "tempo 120\n", CurrentSection: 2, Tempo: 120, LayersEnabled: []bool{true, false}}
	snap.MacroValues[0] = 0.75

	data, err := jsonAPI.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, store.Save(data))

	restored, ok, err := Restore(store)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.Source, restored.Source)
	require.Equal(t, snap.CurrentSection, restored.CurrentSection)
	require.InDelta(t, 0.75, restored.MacroValues[0], 1e-9)
	require.Equal(t, []bool{true, false}, restored.LayersEnabled)
}

func TestRestoreNothingSavedReturnsFalse(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.json.gz"))
	_, ok, err := Restore(store)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAutoSaveSchedulerDebouncesToLastQueue(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "auto.json.gz"))
	sched := NewAutoSaveScheduler(store)

	sched.Queue(Snapshot{Source: "first", Tempo: types.TicksPerBeat.Float64()})
	sched.Queue(Snapshot{Source: "second", Tempo: 2})

	require.Eventually(t, func() bool {
		data, err := store.Load()
		return err == nil && data != nil
	}, 2*time.Second, 20*time.Millisecond)

	restored, ok, err := Restore(store)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", restored.Source, "only the last queued snapshot within the debounce window should be saved")
}
