package feed

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/ingestion/domain"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type Options struct {
	Format             string
	Sheet              string
	HTTPTimeout        time.Duration
	GCSCredentialsFile string
}

func OptionsFromConfig(cfg config.FeedConfig) Options {
	return Options{
		Format:             cfg.Format,
		Sheet:              cfg.Sheet,
		HTTPTimeout:        cfg.HTTPTimeout,
		GCSCredentialsFile: cfg.GCSCredentialsFile,
	}
}

// NewSource picks the transport from the URL scheme: http(s), gs or a
// local path (bare or file://).
func NewSource(rawURL string, opts Options) (domain.Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, domain.ErrNoSource
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedSource, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return &httpSource{url: rawURL, format: detectFormat(opts.Format, u.Path), opts: opts}, nil
	case "gs":
		object := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || object == "" {
			return nil, fmt.Errorf("%w: gs url needs bucket and object", domain.ErrUnsupportedSource)
		}
		return &gcsSource{bucket: u.Host, object: object, format: detectFormat(opts.Format, object), opts: opts}, nil
	case "file":
		p := u.Path
		if u.Host != "" {
			p = u.Host + u.Path
		}
		return &fileSource{path: p, format: detectFormat(opts.Format, p), opts: opts}, nil
	case "":
		return &fileSource{path: rawURL, format: detectFormat(opts.Format, rawURL), opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", domain.ErrUnsupportedSource, u.Scheme)
	}
}

func detectFormat(override, name string) string {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case FormatCSV:
		return FormatCSV
	case FormatXLSX:
		return FormatXLSX
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}
