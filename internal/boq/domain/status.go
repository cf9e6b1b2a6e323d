package domain

import "fmt"

// Status is the lifecycle stage of a BoQ job as seen by the client.
type Status string

// Wire values match the processing service's status strings.
const (
	StatusUploading Status = "uploading"
	StatusQueued    Status = "queued"
	StatusStarted   Status = "started"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusUploading,
	StatusQueued,
	StatusStarted,
	StatusFinished,
	StatusFailed,
}

// StatusMeta is the display metadata attached to a status.
type StatusMeta struct {
	Label    string
	Color    string
	Terminal bool
}

var statusMeta = map[Status]StatusMeta{
	StatusUploading: {Label: "Uploading", Color: "blue", Terminal: false},
	StatusQueued:    {Label: "Queued", Color: "gray", Terminal: false},
	StatusStarted:   {Label: "Processing", Color: "blue", Terminal: false},
	StatusFinished:  {Label: "Finished", Color: "green", Terminal: true},
	StatusFailed:    {Label: "Failed", Color: "red", Terminal: true},
}

// transitions is the authoritative state machine. Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusUploading: {StatusQueued, StatusFailed},
	StatusQueued:    {StatusStarted, StatusFailed},
	StatusStarted:   {StatusFinished, StatusFailed},
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusMeta[st]; !ok {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}

// Info returns the display metadata for s. Unknown values yield a zero StatusMeta.
func (s Status) Info() StatusMeta {
	return statusMeta[s]
}

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return statusMeta[s].Terminal
}

// CanTransition reports whether from -> to is a valid edge.
// A self-transition on a non-terminal status is a no-op and allowed.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
