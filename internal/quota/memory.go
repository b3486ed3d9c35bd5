package quota

import (
	"context"
	"sync"
)

// MemoryStore keeps counts for the current day in process memory. Any call
// with a different day resets every count to zero.
type MemoryStore struct {
	mu       sync.Mutex
	day      string
	counts   map[string]int
	modelIDs []string
}

// NewMemoryStore creates a store whose count map always contains modelIDs.
func NewMemoryStore(modelIDs ...string) *MemoryStore {
	s := &MemoryStore{modelIDs: append([]string(nil), modelIDs...)}
	s.reset("")
	return s
}

func (s *MemoryStore) reset(day string) {
	s.day = day
	s.counts = make(map[string]int, len(s.modelIDs))
	for _, id := range s.modelIDs {
		s.counts[id] = 0
	}
}

// caller must hold mu
func (s *MemoryStore) rollover(day string) {
	if s.day != day {
		s.reset(day)
	}
}

func (s *MemoryStore) Count(_ context.Context, day, modelID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover(day)
	return s.counts[modelID], nil
}

func (s *MemoryStore) Increment(_ context.Context, day, modelID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover(day)
	s.counts[modelID]++
	return s.counts[modelID], nil
}

// Snapshot returns the current day and a copy of its counts.
func (s *MemoryStore) Snapshot() (string, map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counts))
	for id, c := range s.counts {
		out[id] = c
	}
	return s.day, out
}
