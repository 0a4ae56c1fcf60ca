package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferre795/chatrelay/pkg/store"
)

var (
	// ErrNotFound is returned when an operation names an unknown session.
	ErrNotFound = errors.New("session not found")

	// ErrExists is returned when creating a session whose id is taken.
	ErrExists = errors.New("session already exists")
)

// Registry holds every known session plus the active session pointer.
// All mutation happens on the client's single logical thread; every
// mutating call writes the full snapshot through to the store.
type Registry struct {
	store    store.Store
	logger   zerolog.Logger
	sessions map[string]*Session
	activeID string
	now      func() time.Time
}

// NewRegistry creates an empty registry backed by st.
func NewRegistry(st store.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		store:    st,
		logger:   logger.With().Str("component", "registry").Logger(),
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a new empty session and returns it. Ids are assigned
// externally and must be unique.
func (r *Registry) Create(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}
	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}

	s := &Session{
		ID:        id,
		CreatedAt: r.now(),
	}
	r.sessions[id] = s

	if err := r.persist(); err != nil {
		return nil, err
	}

	r.logger.Info().Str("sessionId", id).Msg("Session created")
	return s, nil
}

// Append adds a message to a session's log.
func (r *Registry) Append(id string, msg Message) error {
	s, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.Messages = append(s.Messages, msg)

	if err := r.persist(); err != nil {
		return err
	}

	r.logger.Debug().
		Str("sessionId", id).
		Str("sender", string(msg.Sender)).
		Msg("Message appended")
	return nil
}

// Delete removes a session. Deleting an unknown id is a no-op. When the
// active session is deleted the active pointer is cleared; selecting a
// fallback is the caller's concern.
func (r *Registry) Delete(id string) error {
	if _, exists := r.sessions[id]; !exists {
		return nil
	}

	delete(r.sessions, id)
	if r.activeID == id {
		r.activeID = ""
	}

	if err := r.persist(); err != nil {
		return err
	}

	r.logger.Info().Str("sessionId", id).Msg("Session deleted")
	return nil
}

// Clear drops every session and wipes the persisted snapshot.
func (r *Registry) Clear() error {
	r.sessions = make(map[string]*Session)
	r.activeID = ""

	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}

	r.logger.Info().Msg("All sessions removed")
	return nil
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, exists := r.sessions[id]
	return s, exists
}

// List returns sessions newest-created-first, the display order of the
// history panel.
func (r *Registry) List() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Len reports the number of sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// SetActive moves the active pointer and persists it.
func (r *Registry) SetActive(id string) error {
	if _, exists := r.sessions[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.activeID = id
	return r.persist()
}

// ActiveID returns the current session pointer, empty when none.
func (r *Registry) ActiveID() string {
	return r.activeID
}

// Restore loads the persisted snapshot. It returns true when at least
// one session was recovered. An unparseable snapshot is purged and
// treated as absent, leaving the registry empty.
func (r *Registry) Restore() (bool, error) {
	data, activeID, ok, err := r.store.Load()
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !ok || len(data) == 0 {
		return false, nil
	}

	var restored []*Session
	if err := json.Unmarshal(data, &restored); err != nil {
		r.logger.Warn().Err(err).Msg("Corrupt session snapshot discarded")
		if clearErr := r.store.Clear(); clearErr != nil {
			r.logger.Error().Err(clearErr).Msg("Failed to purge corrupt snapshot")
		}
		return false, nil
	}

	r.sessions = make(map[string]*Session, len(restored))
	for _, s := range restored {
		if s == nil || s.ID == "" {
			continue
		}
		r.sessions[s.ID] = s
	}
	if len(r.sessions) == 0 {
		return false, nil
	}

	// Point at the restored active session when it survived, otherwise
	// fall back to the newest
	if _, exists := r.sessions[activeID]; exists {
		r.activeID = activeID
	} else {
		r.activeID = r.List()[0].ID
	}

	r.logger.Info().
		Int("sessions", len(r.sessions)).
		Str("activeId", r.activeID).
		Msg("Sessions restored from snapshot")
	return true, nil
}

// persist writes the full snapshot through to the store. Sessions are
// serialized oldest-first so creation order survives the round trip.
func (r *Registry) persist() error {
	ordered := r.List()
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}

	data, err := json.Marshal(ordered)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	if err := r.store.Save(data, r.activeID); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}
