package domain

// Report is the outcome of one ingestion run.
type Report struct {
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Errors    int    `json:"errors"`
	Malformed int    `json:"malformed"`
	Batches   int    `json:"batches"`
}
