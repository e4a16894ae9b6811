// Package ledger provides the idempotency ledger for payment submission.
//
// # Overview
//
// The ledger enforces at-most-once execution of a side effect per
// client-supplied idempotency key. It prevents duplicate charges when clients
// retry requests after timeouts or network failures, and when duplicated
// requests arrive concurrently.
//
// # How It Works
//
// 1. On submission, the handler presents the request's idempotency key
// 2. The store atomically checks for a recorded result or an in-flight request
// 3. If recorded: the stored result is replayed byte-identically, without
// re-invoking the side effect
// 4. If in-flight: the caller waits for the admitted request to complete,
// then replays its result
// 5. Otherwise: the caller is admitted, executes the side effect, and records
// the result
//
// Only terminal outcomes are recorded. An admitted caller that fails before
// completing releases its in-flight slot via Fail, so a legitimate retry can
// re-execute; waiters blocked on a failed attempt re-contend for admission.
//
// # Implementing Custom Stores
//
// Store is an interface so distributed deployments can back the ledger with
// Redis or a database. Single-instance deployments use InMemoryStore. Custom
// implementations must keep CheckAndMark atomic: a naive check-then-insert
// allows two first-time callers to both execute the side effect.
package ledger
