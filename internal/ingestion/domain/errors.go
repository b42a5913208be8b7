package domain

import "errors"

var (
	ErrBatchCommit       = errors.New("batch_commit_failed")
	ErrIngestionAborted  = errors.New("ingestion_aborted")
	ErrRunInProgress     = errors.New("ingestion_run_in_progress")
	ErrSourceUnavailable = errors.New("source_unavailable")
	ErrNoSource          = errors.New("no_source_configured")
	ErrUnsupportedSource = errors.New("unsupported_source")
)
