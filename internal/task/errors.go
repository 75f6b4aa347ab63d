package task

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common errors returned by the TaskQueue
var (
	// ErrQueueClosed is returned when work is submitted after Close.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrNilOperation is returned when Add is called without an operation.
	ErrNilOperation = errors.New("task operation is nil")

	// ErrNotBlocked is returned by UnblockQueue when no block is active.
	ErrNotBlocked = errors.New("queue is not blocked")

	// ErrNotSettled is returned by Handle.Result before the task settles.
	ErrNotSettled = errors.New("task has not settled")

	// ErrInvalidConfig is returned when a QueueConfig fails validation.
	ErrInvalidConfig = errors.New("invalid queue configuration")

	// ErrStateViolation indicates an internal bookkeeping error: a task was
	// not found in the list it was supposed to leave.
	ErrStateViolation = errors.New("task state violation")

	// ErrJournalWrite is reported when a completed result could not be
	// appended to the journal. The task stays complete.
	ErrJournalWrite = errors.New("journal write failed")
)

// OperationError is the terminal failure of a task, after any retries.
// It wraps the error returned by the last attempt.
type OperationError struct {
	TaskID   uuid.UUID
	Name     string
	Attempts int
	Err      error

	// Journal is where completed results were recorded, if the journal
	// can describe its location
	Journal string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("task %q failed after %d attempt(s): %v", e.Name, e.Attempts, e.Err)
	}
	return fmt.Sprintf("task %s failed after %d attempt(s): %v", e.TaskID, e.Attempts, e.Err)
}

// Unwrap returns the operation's own error.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// StateViolationError describes a failed list move.
type StateViolationError struct {
	TaskID uuid.UUID
	Name   string
	From   State
	To     State
}

// Error implements the error interface.
func (e *StateViolationError) Error() string {
	return fmt.Sprintf("task %q (%s) is not in list %s, cannot move it to %s",
		e.Name, e.TaskID, e.From, e.To)
}

// Unwrap allows errors.Is(err, ErrStateViolation).
func (e *StateViolationError) Unwrap() error {
	return ErrStateViolation
}
