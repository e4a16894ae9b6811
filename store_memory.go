package taskpay

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryTaskStore provides an in-memory implementation of TaskStore.
//
// This implementation is suitable for single-instance deployments where task
// state doesn't need to be shared across processes. For distributed
// deployments, implement TaskStore with a shared backend whose update path
// carries the version precondition (e.g. UPDATE ... WHERE version = ?).
//
// Each task carries its own mutex, so mutations on different tasks proceed
// in parallel; the store-level lock only guards map membership.
type InMemoryTaskStore struct {
	mu      sync.RWMutex
	entries map[string]*taskEntry
	order   []string
}

type taskEntry struct {
	mu   sync.Mutex
	task Task
}

// NewInMemoryTaskStore creates a new empty in-memory task store.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		entries: make(map[string]*taskEntry),
	}
}

// Create allocates a new task with status PENDING and version 1.
func (s *InMemoryTaskStore) Create(ctx context.Context, title, description string) (*Task, error) {
	now := time.Now().UTC()
	task := Task{
		ID:          NewTaskID(),
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.entries[task.ID] = &taskEntry{task: task}
	s.order = append(s.order, task.ID)
	s.mu.Unlock()

	copied := task
	return &copied, nil
}

// Get returns a snapshot of the task, or a task_not_found error.
func (s *InMemoryTaskStore) Get(ctx context.Context, id string) (*Task, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, NewNotFoundError(id)
	}

	entry.mu.Lock()
	copied := entry.task
	entry.mu.Unlock()
	return &copied, nil
}

// List returns a snapshot of all tasks in creation order.
func (s *InMemoryTaskStore) List(ctx context.Context) ([]*Task, error) {
	s.mu.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	entries := make([]*taskEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, s.entries[id])
	}
	s.mu.RUnlock()

	tasks := make([]*Task, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		copied := entry.task
		entry.mu.Unlock()
		tasks = append(tasks, &copied)
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

// CompareAndSwap atomically checks the version precondition and applies the
// mutation. Exactly one of any set of concurrent attempts with the same
// expectedVersion succeeds; the rest receive a version_conflict error.
func (s *InMemoryTaskStore) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutation) (*Task, error) {
	return s.apply(id, &expectedVersion, mutate)
}

// Update applies the mutation unconditionally. The precondition is resolved
// against the current version inside the task's critical section, never as a
// separate read followed by a blind write.
func (s *InMemoryTaskStore) Update(ctx context.Context, id string, mutate Mutation) (*Task, error) {
	return s.apply(id, nil, mutate)
}

func (s *InMemoryTaskStore) lookup(id string) (*taskEntry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	return entry, ok
}

// apply is the single mutation path. All version checks and writes happen
// under the task's own lock.
func (s *InMemoryTaskStore) apply(id string, expectedVersion *int64, mutate Mutation) (*Task, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, NewNotFoundError(id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	current := entry.task
	if expectedVersion != nil && *expectedVersion != current.Version {
		return nil, NewConflictError(id, *expectedVersion, current.Version)
	}

	next := current
	mutate(&next)

	// The mutation only owns the mutable fields.
	next.ID = current.ID
	next.Version = current.Version + 1
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()

	entry.task = next

	copied := next
	return &copied, nil
}

// Ensure InMemoryTaskStore implements TaskStore
var _ TaskStore = (*InMemoryTaskStore)(nil)
