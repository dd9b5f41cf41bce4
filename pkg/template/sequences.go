package template

import "sync"

// SequenceStore holds the named counters behind {{sequence("name")}}.
type SequenceStore struct {
	mu        sync.Mutex
	sequences map[string]int64
}

// NewSequenceStore creates an empty store.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{sequences: make(map[string]int64)}
}

// Next increments the named counter and returns it. The first call
// returns 1.
func (s *SequenceStore) Next(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[name]++
	return s.sequences[name]
}

// Reset clears every counter.
func (s *SequenceStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sequences)
}
