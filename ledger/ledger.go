package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Status represents the result of checking the store.
type Status int

const (
	// StatusNotFound means no recorded result and no in-flight request.
	StatusNotFound Status = iota
	// StatusRecorded means a recorded result was found.
	StatusRecorded
	// StatusInFlight means another request is currently processing this key.
	StatusInFlight
)

// Result is the recorded outcome of the first successful execution for a key.
// Body is replayed byte-identically to every subsequent request.
type Result struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// Record is a ledger entry as exposed by introspection. Records are created
// on first completion of a key and never mutated afterwards; CreatedAt exists
// only to support an external retention policy.
type Record struct {
	Key       string    `json:"key"`
	Result    Result    `json:"result"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store defines the interface for idempotency storage.
// Implementations must be safe for concurrent use.
//
// The interface is designed to support both in-memory and distributed
// backends (Redis, database, etc.) for different deployment scenarios.
type Store interface {
	// CheckAndMark atomically checks the store and marks the key as in-flight
	// if needed.
	//
	// Returns:
	//   - StatusRecorded + result + nil: a recorded result exists, replay it
	//   - StatusInFlight + nil + done: another request is processing, wait on
	//     the done channel
	//   - StatusNotFound + nil + done: this request is admitted (now marked
	//     in-flight) and must later call Complete or Fail with done
	CheckAndMark(key string) (Status, *Result, chan struct{})

	// WaitForResult waits for an in-flight request to complete, respecting
	// context cancellation.
	//
	// Returns:
	//   - The recorded result if the in-flight request completed
	//   - nil if the in-flight request failed (caller should re-contend)
	//   - Error if context was cancelled
	WaitForResult(ctx context.Context, key string, done chan struct{}) (*Result, error)

	// Complete records the result for the key and signals any waiting
	// goroutines via the done channel.
	//
	// The done channel must be the same one returned by CheckAndMark.
	Complete(key string, result *Result, done chan struct{})

	// Fail removes the in-flight marker without recording a result,
	// signaling waiters that they should re-contend for admission.
	//
	// The done channel must be the same one returned by CheckAndMark.
	Fail(key string, done chan struct{})

	// List returns a snapshot of all live records, oldest first.
	List() []Record
}

// KeyGenerator derives an idempotency key from request bytes, for callers
// that deduplicate on content rather than on a client-supplied header.
type KeyGenerator func(payload []byte) string

// DefaultKeyGenerator hashes the payload with SHA256. Two byte-identical
// request bodies map to the same key.
func DefaultKeyGenerator(payload []byte) string {
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}
