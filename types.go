package taskpay

import (
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// Valid reports whether the status is one of the closed set of task states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Task is a versioned task record. Version starts at 1 on creation and is
// incremented by exactly 1 on every accepted mutation; it is the precondition
// token for optimistic concurrency control.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskRequest is the create/update request body for a task.
//
// Version is the optional optimistic-concurrency precondition on updates:
// when set, the update is applied only if the stored task still carries that
// version; when nil, the update is unconditional and the store resolves the
// precondition atomically against the current version. It is ignored on
// creation.
type TaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     *int64 `json:"version,omitempty"`
}

// PaymentStatus represents the terminal or pending state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// PaymentType distinguishes the direction of a payment.
type PaymentType string

const (
	PaymentTypeDebit  PaymentType = "DEBIT"
	PaymentTypeCredit PaymentType = "CREDIT"
)

// PaymentRequest is the request body for submitting a payment against a task.
type PaymentRequest struct {
	TaskID            string `json:"taskId"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	ExternalReference string `json:"externalReference"`
}

// Payment is the recorded outcome of a payment execution.
//
// Status SUCCESS and FAILED are terminal outcomes: a FAILED payment is a
// decline by the external provider, not an infrastructure error, and retrying
// it would decline again. Infrastructure errors never produce a Payment.
type Payment struct {
	ID                string        `json:"id"`
	TaskID            string        `json:"taskId"`
	Amount            string        `json:"amount"`
	Currency          string        `json:"currency"`
	ExternalReference string        `json:"externalReference"`
	Status            PaymentStatus `json:"status"`
	Type              PaymentType   `json:"type"`
	CreatedAt         time.Time     `json:"createdAt"`
}
