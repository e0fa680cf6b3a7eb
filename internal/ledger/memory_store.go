package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps the ledger in process memory when no NATS backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Put stores or replaces one entry.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key()] = entry
	return nil
}

// DeleteCheck removes every entry for check id.
// Returns: number of removed entries.
func (s *MemoryStore) DeleteCheck(_ context.Context, checkID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if keyHasCheckID(key, checkID) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// List returns entries of runID, or all entries when runID is empty.
func (s *MemoryStore) List(_ context.Context, runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for key, entry := range s.entries {
		if keyInRun(key, runID) {
			out = append(out, entry)
		}
	}
	sortEntries(out)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
