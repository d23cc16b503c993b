package catalog

import "time"

// Bootstrap dataset kinds, matching the catalog dump file names.
const (
	KindColors   = "colors"
	KindParts    = "parts"
	KindElements = "elements"
)

// ValidKind reports whether a dataset kind is one the loader understands.
func ValidKind(kind string) bool {
	switch kind {
	case KindColors, KindParts, KindElements:
		return true
	}
	return false
}

// BootstrapJob is the redis-persisted state of a prepared upload.
type BootstrapJob struct {
	ID        string            `json:"id"`
	Dir       string            `json:"dir"`
	Files     map[string]string `json:"files"`
	Counts    map[string]int    `json:"counts"`
	CreatedAt time.Time         `json:"created_at"`
}

// PrepareResult is returned to the admin after an upload is staged.
type PrepareResult struct {
	JobID  string         `json:"job_id"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// RunRequest drives one batch of the loader.
type RunRequest struct {
	JobID     string `json:"job_id" validate:"required"`
	Kind      string `json:"kind" validate:"required"`
	Offset    int    `json:"offset" validate:"min=0"`
	BatchSize int    `json:"batch_size"`
}

// RunResult reports one batch. Offset is the cursor for the next call.
type RunResult struct {
	Done      bool     `json:"done"`
	Kind      string   `json:"kind"`
	Offset    int      `json:"offset"`
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Messages  []string `json:"messages"`
}
