package taskpay

import (
	"strings"

	"github.com/google/uuid"
)

// NewTaskID generates a unique task identifier.
//
// The generated ID format is: "task_" + UUID v4 without hyphens (32 hex chars)
// Example: "task_7d5d747be160e280504c099d984bcfe0"
func NewTaskID() string {
	return "task_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewPaymentID generates a unique payment identifier with the "pay_" prefix.
func NewPaymentID() string {
	return "pay_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
