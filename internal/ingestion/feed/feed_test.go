package feed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/recovery/internal/ingestion/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func drain(t *testing.T, src domain.Source) []map[string]string {
	t.Helper()
	it, err := src.Open(context.Background())
	require.NoError(t, err)
	defer it.Close()

	var rows []map[string]string
	for {
		row, err := it.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestNewSourceDispatch(t *testing.T) {
	_, err := NewSource("", Options{})
	assert.ErrorIs(t, err, domain.ErrNoSource)

	_, err = NewSource("ftp://example.com/feed.csv", Options{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)

	_, err = NewSource("gs://bucket-only", Options{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)

	src, err := NewSource("gs://invoices/daily/open.xlsx", Options{})
	require.NoError(t, err)
	assert.Equal(t, "gs://invoices/daily/open.xlsx", src.Name())
	assert.Equal(t, FormatXLSX, src.(*gcsSource).format)

	src, err = NewSource("https://example.com/export?id=1", Options{Format: "XLSX"})
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, src.(*httpSource).format)

	src, err = NewSource("file:///tmp/feed.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/feed.csv", src.(*fileSource).path)
}

func TestFileSourceCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.csv")
	body := "\ufeffInvoice ID,Customer Name,Amount\n" +
		"INV-1,Acme,100.50\n" +
		",,\n" +
		"INV-2,\"Globex, Inc\",20\n" +
		"INV-3,Short\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	src, err := NewSource(path, Options{})
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 3)
	assert.Equal(t, "INV-1", rows[0]["Invoice ID"])
	assert.Equal(t, "Globex, Inc", rows[1]["Customer Name"])
	assert.Equal(t, "Short", rows[2]["Customer Name"])
	_, hasAmount := rows[2]["Amount"]
	assert.False(t, hasAmount)
}

func TestHTTPSourceXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"invoice_id", "amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"INV-9", "75"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	src, err := NewSource(srv.URL+"/feed.xlsx", Options{})
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-9", rows[0]["invoice_id"])
	assert.Equal(t, "75", rows[0]["amount"])
}

func TestHTTPSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewSource(srv.URL+"/feed.csv", Options{})
	require.NoError(t, err)
	_, err = src.Open(context.Background())
	assert.Error(t, err)
}

func TestStaticRestartsOnOpen(t *testing.T) {
	src := NewStatic("static", []map[string]string{{"invoice_id": "A"}, {"invoice_id": "B"}})
	assert.Len(t, drain(t, src), 2)
	assert.Len(t, drain(t, src), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
