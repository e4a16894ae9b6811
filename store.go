package taskpay

import (
	"context"
)

// Mutation edits the mutable fields of a task in place. It runs inside the
// task's critical section and must not block or touch other tasks.
//
// The store owns ID, Version, CreatedAt and UpdatedAt; changes a mutation
// makes to those fields are discarded.
type Mutation func(*Task)

// TaskStore defines the interface for versioned task storage.
// Implementations must be safe for concurrent use.
//
// The interface is designed to support both in-memory and database-backed
// implementations (a SQL backend would express CompareAndSwap as an
// UPDATE ... WHERE version = ? statement).
//
// Mutations on a single task are linearizable: each accepted mutation
// observes the version produced by the previous one and increments it by
// exactly 1. Mutations on different tasks may proceed fully in parallel.
type TaskStore interface {
	// Create allocates a new task with status PENDING and version 1.
	// Creation cannot conflict.
	Create(ctx context.Context, title, description string) (*Task, error)

	// Get returns a snapshot of the task, or a task_not_found error.
	Get(ctx context.Context, id string) (*Task, error)

	// List returns a snapshot of all tasks in creation order.
	List(ctx context.Context) ([]*Task, error)

	// CompareAndSwap atomically checks that the stored task's version equals
	// expectedVersion and, if so, applies mutate and increments the version.
	//
	// Returns:
	//   - the updated task if the precondition held
	//   - a version_conflict error if the stored version differs; the stored
	//     task is left untouched
	//   - a task_not_found error if the id is unknown
	//
	// Under concurrent attempts carrying the same expectedVersion exactly one
	// succeeds; which one wins is not specified.
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutation) (*Task, error)

	// Update applies mutate unconditionally. The read of the current version
	// and the conditional write happen inside the same critical section, so
	// an unconditional update never overwrites a concurrent writer's change
	// without observing it; it behaves as a CompareAndSwap against whatever
	// version is current at apply time.
	Update(ctx context.Context, id string, mutate Mutation) (*Task, error)
}
