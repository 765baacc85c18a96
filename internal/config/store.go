package config

import (
	"sync"

	"github.com/waypanel-io/waypanel/internal/models"
)

// Store is the process-wide holder of the current configuration snapshot plus
// the last reload error, if any. It is written only by the reconciler and read
// freely by the UI collaborator; a swap is atomic with respect to readers.
type Store struct {
	mu      sync.RWMutex
	current *models.Snapshot
	lastErr error
}

// NewStore creates a store seeded with the first successful parse. A nil
// snapshot is not accepted here: startup without a valid configuration is
// fatal by contract, and callers enforce that before constructing the store.
func NewStore(initial *models.Snapshot) *Store {
	return &Store{current: initial}
}

// Current returns the authoritative snapshot. Never nil after construction.
func (s *Store) Current() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastError returns the most recent reload error, or nil when the last reload
// succeeded. A non-nil value means the store is degraded: Current() still
// serves the previous good snapshot.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Replace atomically installs a new snapshot and clears the degraded state.
func (s *Store) Replace(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snap
	s.lastErr = nil
}

// Reject records a failed reload. The current snapshot is left untouched.
func (s *Store) Reject(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// Degraded reports whether the last reload attempt failed.
func (s *Store) Degraded() bool {
	return s.LastError() != nil
}
