package domain

// Job status values shared with the API service
const (
	JobStatusQueued   = "queued"
	JobStatusStarted  = "started"
	JobStatusFinished = "finished"
	JobStatusFailed   = "failed"
)

// DefaultMaxAttempts bounds how often a job is retried after transient failures
const DefaultMaxAttempts = 3
