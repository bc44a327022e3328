// Package taste defines the narrow persistence boundary internal/session
// writes through. "Taste" is the performer's accumulated preference
// state — which macros, curves, and mappings a given performer tends to
// reach for — kept deliberately opaque here: session only needs to load
// some bytes and save some bytes, never to interpret them.
package taste

// Store is the minimal interface a persistence backend must satisfy.
// The only implementation today is a local gzip file (internal/session),
// but keeping the interface this narrow means a future sync backend
// doesn't change any caller.
type Store interface {
	// Load returns the previously saved bytes, or (nil, nil) if nothing
	// has been saved yet.
	Load() ([]byte, error)
	// Save persists data, replacing whatever was previously saved.
	Save(data []byte) error
}
