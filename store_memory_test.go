package taskpay

import (
	"context"
	"sync"
	"testing"
)

func TestInMemoryTaskStore_CreateAndGet(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "write report", "quarterly numbers")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Version != 1 {
		t.Errorf("Expected version 1 on creation, got %d", created.Version)
	}
	if created.Status != TaskStatusPending {
		t.Errorf("Expected status PENDING, got %s", created.Status)
	}
	if created.ID == "" {
		t.Error("Expected a non-empty task ID")
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "write report" || got.Description != "quarterly numbers" {
		t.Errorf("Round-trip mismatch: got %q / %q", got.Title, got.Description)
	}
	if got.Version != 1 {
		t.Errorf("Expected version 1 after round-trip, got %d", got.Version)
	}
}

func TestInMemoryTaskStore_GetUnknown(t *testing.T) {
	store := NewInMemoryTaskStore()

	_, err := store.Get(context.Background(), "task_missing")
	if !IsNotFound(err) {
		t.Errorf("Expected task_not_found error, got %v", err)
	}
}

func TestInMemoryTaskStore_CompareAndSwap(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()
	task, _ := store.Create(ctx, "original", "")

	updated, err := store.CompareAndSwap(ctx, task.ID, 1, func(t *Task) {
		t.Title = "updated"
	})
	if err != nil {
		t.Fatalf("CAS failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Expected version 2 after CAS, got %d", updated.Version)
	}
	if updated.Title != "updated" {
		t.Errorf("Expected title to be mutated, got %q", updated.Title)
	}

	// A second CAS against the stale version must conflict and leave the
	// stored task untouched.
	_, err = store.CompareAndSwap(ctx, task.ID, 1, func(t *Task) {
		t.Title = "stale write"
	})
	if !IsConflict(err) {
		t.Fatalf("Expected version_conflict error, got %v", err)
	}

	got, _ := store.Get(ctx, task.ID)
	if got.Title != "updated" || got.Version != 2 {
		t.Errorf("Conflicting CAS modified the task: %q v%d", got.Title, got.Version)
	}
}

func TestInMemoryTaskStore_CompareAndSwapUnknown(t *testing.T) {
	store := NewInMemoryTaskStore()

	_, err := store.CompareAndSwap(context.Background(), "task_missing", 1, func(t *Task) {})
	if !IsNotFound(err) {
		t.Errorf("Expected task_not_found (not a conflict), got %v", err)
	}
}

func TestInMemoryTaskStore_MutationCannotTamper(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()
	task, _ := store.Create(ctx, "a", "")

	updated, err := store.CompareAndSwap(ctx, task.ID, 1, func(t *Task) {
		t.ID = "task_forged"
		t.Version = 99
	})
	if err != nil {
		t.Fatalf("CAS failed: %v", err)
	}
	if updated.ID != task.ID {
		t.Errorf("Mutation overwrote the ID: %s", updated.ID)
	}
	if updated.Version != 2 {
		t.Errorf("Mutation overwrote the version: %d", updated.Version)
	}
}

func TestInMemoryTaskStore_ConcurrentCASExactlyOneWinner(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()
	task, _ := store.Create(ctx, "contended", "")

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	conflicts := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CompareAndSwap(ctx, task.ID, 1, func(t *Task) {
				t.Title = "winner"
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case IsConflict(err):
				conflicts++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Expected exactly 1 winner, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("Expected %d conflicts, got %d", attempts-1, conflicts)
	}

	got, _ := store.Get(ctx, task.ID)
	if got.Version != 2 {
		t.Errorf("Expected version 2 after one accepted mutation, got %d", got.Version)
	}
}

func TestInMemoryTaskStore_ConcurrentUnconditionalUpdates(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()
	task, _ := store.Create(ctx, "counter", "")

	const updates = 25
	var wg sync.WaitGroup
	for i := 0; i < updates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Update(ctx, task.ID, func(t *Task) {
				t.Description = "touched"
			}); err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Every unconditional update is an atomic read-check-write, so each one
	// must advance the version by exactly 1 with no lost updates.
	got, _ := store.Get(ctx, task.ID)
	if got.Version != 1+updates {
		t.Errorf("Expected version %d, got %d", 1+updates, got.Version)
	}
}

func TestInMemoryTaskStore_ListCreationOrder(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()

	first, _ := store.Create(ctx, "first", "")
	second, _ := store.Create(ctx, "second", "")

	tasks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != first.ID || tasks[1].ID != second.ID {
		t.Errorf("Expected creation order %s, %s; got %s, %s",
			first.ID, second.ID, tasks[0].ID, tasks[1].ID)
	}
}
