package taskpay

import (
	"errors"
	"fmt"
)

// ServiceError represents a service-specific error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeTaskNotFound       = "task_not_found"
	ErrCodeVersionConflict    = "version_conflict"
	ErrCodeValidation         = "validation_error"
	ErrCodeDuplicateReference = "duplicate_reference"
	ErrCodeProcessingFailed   = "processing_failed"
)

// NewServiceError creates a new service error
func NewServiceError(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a task_not_found error for the given task id.
func NewNotFoundError(taskID string) *ServiceError {
	return NewServiceError(ErrCodeTaskNotFound, fmt.Sprintf("task %s not found", taskID), nil)
}

// NewConflictError creates a version_conflict error describing the stale
// precondition. Conflicts are expected, recoverable outcomes: the client is
// supposed to re-read the task and retry with the current version.
func NewConflictError(taskID string, expected, current int64) *ServiceError {
	return NewServiceError(ErrCodeVersionConflict,
		fmt.Sprintf("task %s was modified concurrently: expected version %d, current version %d", taskID, expected, current),
		map[string]interface{}{
			"expectedVersion": expected,
			"currentVersion":  current,
		})
}

// CodeOf returns the service error code carried by err, or "" if err is not
// a ServiceError.
func CodeOf(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound reports whether err is a task_not_found service error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeTaskNotFound
}

// IsConflict reports whether err is a version_conflict service error.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeVersionConflict
}
