package feed

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type xlsxIterator struct {
	file    *excelize.File
	rows    *excelize.Rows
	header  []string
	started bool
}

func newXLSXIterator(r io.Reader, sheet string) (*xlsxIterator, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open sheet %q: %w", sheet, err)
	}
	return &xlsxIterator{file: f, rows: rows}, nil
}

func (it *xlsxIterator) Next() (map[string]string, error) {
	for it.rows.Next() {
		values, err := it.rows.Columns()
		if err != nil {
			return nil, err
		}
		if !it.started {
			it.started = true
			it.header = values
			continue
		}
		if isBlank(values) {
			continue
		}
		return zipRow(it.header, values), nil
	}
	if err := it.rows.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (it *xlsxIterator) Close() error {
	rowsErr := it.rows.Close()
	if err := it.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
