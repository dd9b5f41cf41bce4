package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/getmockd/mockserver-go/internal/matching"
	"github.com/getmockd/mockserver-go/pkg/expectation"
)

// ErrNilExpectation is returned by Upsert for a nil expectation.
var ErrNilExpectation = errors.New("nil expectation")

type entry struct {
	exp     *expectation.Expectation
	seq     uint64
	expires time.Time // zero: never
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// InMemoryExpectationStore is a thread-safe in-memory ExpectationStore.
// Expectations past their time to live are never returned and are evicted
// on the next match.
type InMemoryExpectationStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
	now     func() time.Time
}

var _ ExpectationStore = (*InMemoryExpectationStore)(nil)

// NewInMemoryExpectationStore creates an empty store.
func NewInMemoryExpectationStore() *InMemoryExpectationStore {
	return &InMemoryExpectationStore{entries: make(map[string]*entry), now: time.Now}
}

// Get retrieves an expectation by ID. Returns nil if not found.
func (s *InMemoryExpectationStore) Get(id string) *expectation.Expectation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok && !e.expired(s.now()) {
		return e.exp
	}
	return nil
}

// Upsert stores an expectation, replacing one with the same ID. A replaced
// expectation keeps its position in creation order.
func (s *InMemoryExpectationStore) Upsert(e *expectation.Expectation) error {
	if e == nil {
		return ErrNilExpectation
	}
	var expires time.Time
	if ttl := e.TimeToLive.Duration(); ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[e.ID]; ok {
		existing.exp = e
		existing.expires = expires
		return nil
	}
	s.seq++
	s.entries[e.ID] = &entry{exp: e, seq: s.seq, expires: expires}
	return nil
}

// Delete removes an expectation by ID. Returns true if deleted, false if not found.
func (s *InMemoryExpectationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; exists {
		delete(s.entries, id)
		return true
	}
	return false
}

// List returns all stored expectations, sorted by priority (descending)
// then by creation order.
func (s *InMemoryExpectationStore) List() []*expectation.Expectation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	sorted := s.sortedLocked()
	out := make([]*expectation.Expectation, 0, len(sorted))
	for _, e := range sorted {
		if !e.expired(now) {
			out = append(out, e.exp)
		}
	}
	return out
}

// Retrieve returns the expectations whose definition accepts filter.
func (s *InMemoryExpectationStore) Retrieve(filter *expectation.HTTPRequest) []*expectation.Expectation {
	all := s.List()
	if filter == nil {
		return all
	}
	out := make([]*expectation.Expectation, 0, len(all))
	for _, e := range all {
		if matching.Matches(e.HTTPRequest, filter) {
			out = append(out, e)
		}
	}
	return out
}

// Match selects the expectation handling actual and consumes one use of it.
func (s *InMemoryExpectationStore) Match(actual *expectation.HTTPRequest) *expectation.Expectation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best      *entry
		bestScore int
	)
	now := s.now()
	for _, e := range s.sortedLocked() {
		if e.expired(now) {
			delete(s.entries, e.exp.ID)
			continue
		}
		if best != nil && e.exp.Priority < best.exp.Priority {
			break
		}
		score := matching.Score(e.exp.HTTPRequest, actual)
		if score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return nil
	}

	if t := best.exp.Times; t != nil && !t.Unlimited {
		// Copy so that expectations already handed out stay unchanged.
		consumed := *best.exp
		consumed.Times = expectation.Exactly(t.RemainingTimes - 1)
		if consumed.Times.RemainingTimes <= 0 {
			delete(s.entries, best.exp.ID)
		} else {
			best.exp = &consumed
		}
		return &consumed
	}
	return best.exp
}

// Count returns the number of live expectations.
func (s *InMemoryExpectationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Clear removes all stored expectations.
func (s *InMemoryExpectationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// sortedLocked orders every entry by priority then creation, expired ones
// included.
func (s *InMemoryExpectationStore) sortedLocked() []*entry {
	result := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].exp.Priority != result[j].exp.Priority {
			return result[i].exp.Priority > result[j].exp.Priority
		}
		return result[i].seq < result[j].seq
	})
	return result
}
