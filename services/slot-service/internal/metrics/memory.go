package metrics

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps request rows in memory. It backs tests and runs without
// a database; rows do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	requests []Request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertRequest(_ context.Context, r Request) error {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListRequestsSince(_ context.Context, since time.Time) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteRequestsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.requests[:0]
	var deleted int64
	for _, r := range s.requests {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.requests = kept
	return deleted, nil
}
