package domain

import "errors"

var (
	// ErrJobAlreadyClaimed is returned when the job is no longer queued
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")

	// ErrInvalidMessage is returned when a queue message cannot be parsed
	ErrInvalidMessage = errors.New("invalid job message")

	// ErrInvalidDrawing is returned when the stored drawing cannot be processed
	ErrInvalidDrawing = errors.New("invalid drawing")

	// ErrMaxAttemptsExceeded is returned when a job has used up its retries
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
