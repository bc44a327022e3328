// Package session persists scratch performance state — the active
// source text, macro values, and section/layer state — across runs, so
// a performer can quit and resume where they left off. It adapts the
// teacher's debounced-gzip-jsoniter autosave pattern from
// internal/storage/storage.go to this spec's much smaller save payload.
package session

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/resonance-lang/resonance/internal/taste"
	"github.com/resonance-lang/resonance/internal/types"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the saved performance state, source text included.
// Restore only decodes it; recompiling the source or reapplying the
// macro/section state is left to the caller.
type Snapshot struct {
	Source         string             `json:"source"`
	MacroValues    [types.MaxMacros]float64 `json:"macro_values"`
	CurrentSection int                `json:"current_section"`
	LayersEnabled  []bool             `json:"layers_enabled"`
	Tempo          float64            `json:"tempo"`
	SavedAt        string             `json:"saved_at"`
}

// FileStore is a taste.Store backed by a single gzip-compressed JSON
// file. Save writes immediately; debouncing a burst of saves into one
// disk write is AutoSaveScheduler's job.
type FileStore struct {
	path string

	mu    sync.Mutex
	timer *time.Timer
}

// DebounceTime mirrors the teacher's storage.go debounceTime constant.
const DebounceTime = 1 * time.Second

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() ([]byte, error) {
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: open %q: %w", f.path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("session: gzip reader: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("session: read: %w", err)
	}
	return data, nil
}

func (f *FileStore) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}
	file, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("session: create %q: %w", f.path, err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	defer gz.Close()

	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

// AutoSaveScheduler debounces Snapshot saves the way the teacher's
// AutoSave function debounces model saves: each call resets a timer, and
// only the last call within DebounceTime actually writes.
type AutoSaveScheduler struct {
	store taste.Store
	mu    sync.Mutex
	timer *time.Timer
}

func NewAutoSaveScheduler(store taste.Store) *AutoSaveScheduler {
	return &AutoSaveScheduler{store: store}
}

// Queue debounces a save of snap; it returns immediately, the actual
// write happens on a background goroutine after DebounceTime of no
// further Queue calls.
func (a *AutoSaveScheduler) Queue(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(DebounceTime, func() {
		go func() {
			start := time.Now()
			if err := a.saveNow(snap); err != nil {
				log.Printf("session: autosave failed: %v", err)
				return
			}
			log.Printf("session: autosaved in %s", time.Since(start))
		}()
	})
}

func (a *AutoSaveScheduler) saveNow(snap Snapshot) error {
	data, err := jsonAPI.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	return a.store.Save(data)
}

// Restore loads and unmarshals the last saved Snapshot, or returns the
// zero Snapshot and false if nothing was saved yet.
func Restore(store taste.Store) (Snapshot, bool, error) {
	data, err := store.Load()
	if err != nil {
		return Snapshot{}, false, err
	}
	if data == nil {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := jsonAPI.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("session: unmarshal: %w", err)
	}
	return snap, true, nil
}
