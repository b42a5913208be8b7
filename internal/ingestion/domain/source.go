package domain

import "context"

// Iterator yields raw rows keyed by header. Next returns io.EOF after the
// last row.
type Iterator interface {
	Next() (map[string]string, error)
	Close() error
}

// Source opens a fresh pass over the whole feed on every call; there is no
// cursor between runs.
type Source interface {
	Name() string
	Open(ctx context.Context) (Iterator, error)
}

type Service interface {
	// Run ingests the configured feed.
	Run(ctx context.Context) (Report, error)
	Ingest(ctx context.Context, src Source) (Report, error)
}
