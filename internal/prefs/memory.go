package prefs

import (
	"context"
	"sync"
)

// MemoryStore keeps preferences in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	muted map[string]bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{muted: make(map[string]bool)}
}

// Muted returns the stored flag
func (s *MemoryStore) Muted(_ context.Context, playerID string) (bool, error) {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted[id], nil
}

// SetMuted stores the flag
func (s *MemoryStore) SetMuted(_ context.Context, playerID string, muted bool) error {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if muted {
		s.muted[id] = true
	} else {
		delete(s.muted, id)
	}
	return nil
}
