package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore provides an in-memory implementation of Store.
//
// This implementation is suitable for single-instance deployments where
// ledger state doesn't need to be shared across processes. For distributed
// deployments (load-balanced clusters, etc.), implement Store with a shared
// backend like Redis.
//
// Features:
//   - Thread-safe with mutex protection
//   - Configurable TTL for recorded results (ttl <= 0 disables expiry)
//   - In-flight request tracking with wait channels
//   - Lazy cleanup of expired entries
type InMemoryStore struct {
	mu       sync.Mutex
	records  map[string]*Record
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

// NewInMemoryStore creates a new in-memory ledger with the specified TTL.
//
// The TTL bounds how long recorded results are replayed; it is the retention
// window after which a key may be garbage collected. A ttl <= 0 keeps records
// forever.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[string]*Record),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

// CheckAndMark atomically checks the ledger and marks the key as in-flight if
// needed.
//
// Returns:
//   - StatusRecorded + result if a recorded result exists and hasn't expired
//   - StatusInFlight + wait channel if another request is currently processing
//   - StatusNotFound + done channel if this request is admitted (now marked
//     in-flight)
func (s *InMemoryStore) CheckAndMark(key string) (Status, *Result, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.liveRecordLocked(key); ok {
		result := record.Result
		return StatusRecorded, &result, nil
	}

	// Check if in-flight
	if done, exists := s.inFlight[key]; exists {
		return StatusInFlight, nil, done
	}

	// Mark as in-flight
	done := make(chan struct{})
	s.inFlight[key] = done
	return StatusNotFound, nil, done
}

// WaitForResult waits for an in-flight request to complete, respecting
// context cancellation.
//
// Returns:
//   - The recorded result if available after the in-flight request completes
//   - nil if the in-flight request failed (no result was recorded)
//   - Error if the context was cancelled before completion
func (s *InMemoryStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (*Result, error) {
	select {
	case <-done:
		// In-flight request completed, check for a recorded result
		return s.get(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// get retrieves a recorded result if it exists and hasn't expired.
func (s *InMemoryStore) get(key string) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.liveRecordLocked(key)
	if !ok {
		return nil
	}
	result := record.Result
	return &result
}

// liveRecordLocked returns the unexpired record for key, cleaning up an
// expired one on the way. Must be called with the lock held.
func (s *InMemoryStore) liveRecordLocked(key string) (*Record, bool) {
	record, exists := s.records[key]
	if !exists {
		return nil, false
	}
	if expiry, bounded := s.expiry[key]; bounded && time.Now().After(expiry) {
		delete(s.records, key)
		delete(s.expiry, key)
		return nil, false
	}
	return record, true
}

// Complete records the result for the key and signals any waiting goroutines.
func (s *InMemoryStore) Complete(key string, result *Result, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := make([]byte, len(result.Body))
	copy(body, result.Body)
	s.records[key] = &Record{
		Key:       key,
		Result:    Result{StatusCode: result.StatusCode, Body: body},
		CreatedAt: time.Now().UTC(),
	}
	if s.ttl > 0 {
		s.expiry[key] = time.Now().Add(s.ttl)
	}

	// Remove from in-flight
	delete(s.inFlight, key)

	// Signal waiters
	close(done)

	// Lazy cleanup of expired entries
	s.cleanupExpiredLocked()
}

// Fail removes the in-flight marker without recording a result, allowing the
// operation to be retried.
func (s *InMemoryStore) Fail(key string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove from in-flight without recording
	delete(s.inFlight, key)

	// Signal waiters (they'll re-contend since no result was recorded)
	close(done)
}

// List returns a snapshot of all live records, oldest first.
func (s *InMemoryStore) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()

	out := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		copied := *record
		copied.Result.Body = append([]byte(nil), record.Result.Body...)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range s.expiry {
		if now.After(expiry) {
			delete(s.records, key)
			delete(s.expiry, key)
		}
	}
}

// Ensure InMemoryStore implements Store
var _ Store = (*InMemoryStore)(nil)
