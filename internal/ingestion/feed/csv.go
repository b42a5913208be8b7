package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type csvIterator struct {
	body    io.Closer
	reader  *csv.Reader
	header  []string
	started bool
}

func newCSVIterator(body io.ReadCloser) *csvIterator {
	r := csv.NewReader(body)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false
	return &csvIterator{body: body, reader: r}
}

func (it *csvIterator) Next() (map[string]string, error) {
	if !it.started {
		it.started = true
		header, err := it.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read csv header: %w", err)
		}
		if len(header) > 0 {
			header[0] = strings.TrimPrefix(header[0], "\ufeff")
		}
		it.header = header
	}

	for {
		record, err := it.reader.Read()
		if err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}
		return zipRow(it.header, record), nil
	}
}

func (it *csvIterator) Close() error {
	return it.body.Close()
}

// zipRow pairs values with headers; extra values are dropped and missing
// ones left out.
func zipRow(header, values []string) map[string]string {
	row := make(map[string]string, len(header))
	for i, name := range header {
		if name == "" || i >= len(values) {
			continue
		}
		row[name] = values[i]
	}
	return row
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
