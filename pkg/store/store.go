// Package store persists the chat client's full session snapshot: the
// serialized session map plus the active session pointer. Implementations
// are write-through targets for the session registry; a snapshot that
// cannot be read back is reported as absent, never as a failure.
package store

// Store is the durable backend for the session registry snapshot.
type Store interface {
	// Save durably writes the serialized session map and the active
	// session id, replacing any previous snapshot.
	Save(sessions []byte, activeID string) error

	// Load reads the snapshot back. ok is false when no usable snapshot
	// exists; corrupt data is purged and reported as absent so later
	// loads do not fail repeatedly.
	Load() (sessions []byte, activeID string, ok bool, err error)

	// Clear removes all persisted state.
	Clear() error

	// Close releases backend resources.
	Close() error
}
