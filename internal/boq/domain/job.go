package domain

import "time"

// LineItem is one row of the quantity list returned by a finished job.
type LineItem struct {
	ItemCode    string  `json:"item_code,omitempty" yaml:"item_code,omitempty"`
	Description string  `json:"description" yaml:"description"`
	Quantity    float64 `json:"quantity" yaml:"quantity"`
	Unit        string  `json:"unit" yaml:"unit"`
}

// Result is the payload attached to a finished job.
type Result struct {
	File  string     `json:"file,omitempty"`
	Items []LineItem `json:"items"`
}

// Job is an immutable snapshot of one submission. The registry replaces whole
// records; callers never mutate a Job they were handed.
type Job struct {
	ClientKey      string
	ServerID       string
	FileName       string
	Status         Status
	UploadProgress int
	Result         *Result
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsDone reports whether the job reached a terminal state.
func (j Job) IsDone() bool {
	return j.Status.IsTerminal()
}

// Clone returns a copy that shares nothing mutable with j.
func (j Job) Clone() Job {
	if j.Result != nil {
		r := *j.Result
		r.Items = append([]LineItem(nil), j.Result.Items...)
		j.Result = &r
	}
	return j
}
