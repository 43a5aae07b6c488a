package server

import (
	"sync"

	"github.com/google/uuid"
)

// SyncState is the shared data-version token. Every successful write
// bumps it; polling clients compare tokens to learn that calendar state
// changed and refetch. This is the trigger point a push transport would
// hook into.
type SyncState struct {
	mu    sync.RWMutex
	token string
}

// NewSyncState creates a sync state with a fresh token.
func NewSyncState() *SyncState {
	return &SyncState{token: uuid.New().String()}
}

// Current returns the current token.
func (s *SyncState) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Bump replaces the token, signalling that calendar state changed.
func (s *SyncState) Bump() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = uuid.New().String()
	return s.token
}
