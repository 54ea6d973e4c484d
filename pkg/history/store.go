// Package history stores conversation turns per user. The resolver and
// prompt builder consume it read-only; the conversation layer appends.
package history

import (
	"sync"
)

// Roles attributed to turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation, insertion order significant.
type Turn struct {
	Role    string
	Content string
}

// Store persists conversation history per user.
type Store interface {
	// Append records one turn for the user.
	Append(userID, role, content string) error

	// Recent returns up to limit most recent turns in chronological
	// order (oldest first).
	Recent(userID string, limit int) ([]Turn, error)

	// Clear removes all turns for the user.
	Clear(userID string) error

	// Close releases the backing resources.
	Close() error
}

// MemoryStore is an in-process Store used in tests and when no database
// path is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]Turn)}
}

// Append implements Store.
func (s *MemoryStore) Append(userID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[userID] = append(s.turns[userID], Turn{Role: role, Content: content})
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(userID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[userID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Turn, len(all))
	copy(out, all)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, userID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
