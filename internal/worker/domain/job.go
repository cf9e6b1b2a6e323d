package domain

// Job is a claimed BoQ job as the worker sees it
type Job struct {
	JobID      string `db:"job_id"`
	FileName   string `db:"file_name"`
	StoredPath string `db:"stored_path"`
	Standard   string `db:"standard"`
	Status     string `db:"status"`
	WorkerID   string `db:"worker_id"`
	Attempts   int    `db:"attempts"`
}

// JobMessage is the body published by the API service
type JobMessage struct {
	JobID string `json:"job_id"`
}

// LineItem is one quantity row produced by a takeoff
type LineItem struct {
	ItemCode    string  `json:"item_code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
}

// Result is stored as the job result and returned verbatim by GET /status
type Result struct {
	File  string     `json:"file"`
	Items []LineItem `json:"items"`
}
