package feed

import (
	"context"
	"io"

	"github.com/smallbiznis/recovery/internal/ingestion/domain"
)

// Static serves a fixed slice of rows; each Open starts from the first.
type Static struct {
	name string
	rows []map[string]string
}

func NewStatic(name string, rows []map[string]string) *Static {
	return &Static{name: name, rows: rows}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Open(ctx context.Context) (domain.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &sliceIterator{rows: s.rows}, nil
}

type sliceIterator struct {
	rows []map[string]string
	pos  int
}

func (it *sliceIterator) Next() (map[string]string, error) {
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *sliceIterator) Close() error { return nil }
