package enrich

// RunRequest asks for one enrichment batch. AfterID is the cursor from
// the previous batch; zero starts from the beginning.
type RunRequest struct {
	AfterID   int64 `json:"after_id"`
	BatchSize int   `json:"batch_size"`
}

// RunResult reports one batch. Done means fewer rows than the batch size
// came back and the scan is complete.
type RunResult struct {
	Done          bool     `json:"done"`
	LastID        int64    `json:"last_id"`
	Processed     int      `json:"processed"`
	UpdatedNames  int      `json:"updated_names"`
	UpdatedImages int      `json:"updated_images"`
	Skipped       int      `json:"skipped"`
	APICalls      int      `json:"api_calls"`
	Messages      []string `json:"messages,omitempty"`
}
