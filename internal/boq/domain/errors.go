package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a reference matches no job in the registry
	ErrJobNotFound = errors.New("job not found")

	// ErrTerminal is returned when a job that already finished or failed is updated
	ErrTerminal = errors.New("job already in terminal state")

	// ErrInvalidTransition is returned for an edge the state machine does not allow
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation marks a file rejected at the selection boundary
	ErrValidation = errors.New("validation failed")

	// ErrTransport marks a network failure talking to the processing service
	ErrTransport = errors.New("transport error")

	// ErrServer marks a non-success response or explicit error payload
	ErrServer = errors.New("server error")

	// ErrFormat marks a response missing a required field
	ErrFormat = errors.New("malformed response")

	// ErrExportFormat marks an export response that is neither a spreadsheet nor JSON
	ErrExportFormat = errors.New("unexpected export format")
)

// ValidationError rejects a file whose extension is not accepted.
type ValidationError struct {
	FileName string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.FileName, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransportError wraps a network-level failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is a non-success response or an explicit {error} payload.
// Error returns the server's message verbatim when one was provided.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server responded with status %d", e.StatusCode)
}

func (e *ServerError) Unwrap() error {
	return ErrServer
}

// FormatError reports a response missing a required field.
type FormatError struct {
	Field  string
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("response missing or invalid %q: %s", e.Field, e.Detail)
	}
	return fmt.Sprintf("response missing or invalid %q", e.Field)
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// ExportFormatError reports an export response with an unrecognized content type.
type ExportFormatError struct {
	ContentType string
}

func (e *ExportFormatError) Error() string {
	return fmt.Sprintf("received an unexpected response format from the server (content type %q)", e.ContentType)
}

func (e *ExportFormatError) Unwrap() error {
	return ErrExportFormat
}
