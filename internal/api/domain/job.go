package domain

import (
	"errors"
	"slices"
)

// Job status values as reported on GET /status/:job_id
const (
	JobStatusQueued   = "queued"
	JobStatusStarted  = "started"
	JobStatusFinished = "finished"
	JobStatusFailed   = "failed"
)

// Measurement standards a takeoff can follow
const (
	StandardAmericanSMM  = "american_smm"
	StandardIndianIS1200 = "indian_is1200"
)

// DefaultStandard is used when an upload does not name one
const DefaultStandard = StandardAmericanSMM

var (
	// ErrJobNotFound is returned when no job has the requested id
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownStandard is returned for a standard the service does not support
	ErrUnknownStandard = errors.New("unknown measurement standard")
)

var statuses = []string{JobStatusQueued, JobStatusStarted, JobStatusFinished, JobStatusFailed}

// IsValidStatus reports whether s is a status filter the API accepts
func IsValidStatus(s string) bool {
	return slices.Contains(statuses, s)
}

// NormalizeStandard returns the default for an empty value and rejects unknown ones
func NormalizeStandard(s string) (string, error) {
	switch s {
	case "":
		return DefaultStandard, nil
	case StandardAmericanSMM, StandardIndianIS1200:
		return s, nil
	default:
		return "", ErrUnknownStandard
	}
}
