package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry is the counter state of one key.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store holds rate limit entries. Implementations must be safe for
// concurrent use; the Limiter serializes its own read-modify-write.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	// Sweep deletes every entry whose ResetAt is not after now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// AtomicStore is implemented by stores that can run a whole fixed-window
// step on their side, so several processes can share one budget.
type AtomicStore interface {
	Store
	Take(ctx context.Context, key string, rule Rule, now time.Time) (Result, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.ResetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
