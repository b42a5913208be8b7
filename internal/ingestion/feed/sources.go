package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/smallbiznis/recovery/internal/ingestion/domain"
	"google.golang.org/api/option"
)

const defaultHTTPTimeout = 60 * time.Second

func openFormat(body io.ReadCloser, format, sheet string) (domain.Iterator, error) {
	if format == FormatXLSX {
		defer body.Close()
		return newXLSXIterator(body, sheet)
	}
	return newCSVIterator(body), nil
}

type fileSource struct {
	path   string
	format string
	opts   Options
}

func (s *fileSource) Name() string { return "file:" + s.path }

func (s *fileSource) Open(ctx context.Context) (domain.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return openFormat(f, s.format, s.opts.Sheet)
}

type httpSource struct {
	url    string
	format string
	opts   Options
	client *http.Client
}

func (s *httpSource) Name() string { return s.url }

func (s *httpSource) Open(ctx context.Context) (domain.Iterator, error) {
	client := s.client
	if client == nil {
		timeout := s.opts.HTTPTimeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}
	return openFormat(resp.Body, s.format, s.opts.Sheet)
}

type gcsSource struct {
	bucket string
	object string
	format string
	opts   Options
}

func (s *gcsSource) Name() string { return "gs://" + s.bucket + "/" + s.object }

func (s *gcsSource) Open(ctx context.Context) (domain.Iterator, error) {
	var clientOpts []option.ClientOption
	if s.opts.GCSCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.opts.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	reader, err := client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return openFormat(&gcsBody{Reader: reader, client: client}, s.format, s.opts.Sheet)
}

// gcsBody closes the storage client together with the object reader.
type gcsBody struct {
	*storage.Reader
	client *storage.Client
}

func (b *gcsBody) Close() error {
	readErr := b.Reader.Close()
	if err := b.client.Close(); err != nil {
		return err
	}
	return readErr
}
