// Package ingestion implements the document ingestion pipeline. It reads
// local files or fetches HTTP(S) URLs, then hands the content to the document
// library for chunking, embedding, and indexing. This pipeline is invoked by
// the `quill ingest` CLI command and the document ingest API.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Ingester is the document indexing surface the pipeline feeds. Satisfied by
// rag.Library.
type Ingester interface {
	// Ingest chunks, embeds, and indexes content under the given source name,
	// returning the number of chunks created.
	Ingest(ctx context.Context, name, content string) (int, error)
}

// Source describes one document to be ingested: a local file path or an
// HTTP(S) URL.
type Source struct {
	// Location is the file path or URL.
	Location string
	// Name overrides the derived source name. Empty derives it from Location.
	Name string
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// HTTPTimeout is the timeout for each URL fetch. Defaults to 30s if zero.
	HTTPTimeout time.Duration
	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
	// MaxFileSize caps the bytes read per source. Defaults to 10 MiB if zero.
	MaxFileSize int64
}

// Pipeline orchestrates the read/fetch → index flow for a set of sources.
type Pipeline struct {
	// library indexes the fetched content.
	library Ingester

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is used for fetching URL sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline over the given document library.
func NewPipeline(library Ingester, cfg *Config) (*Pipeline, error) {
	if library == nil {
		return nil, fmt.Errorf("ingestion: library must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "quill/1.0 (document ingestion)"
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 << 20
	}

	return &Pipeline{
		library: library,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest reads and indexes all provided sources. It processes sources
// sequentially and returns the first error encountered. Progress is reported
// via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for _, src := range sources {
		progress(fmt.Sprintf("reading %s", src.Location))

		content, err := p.read(ctx, src.Location)
		if err != nil {
			return fmt.Errorf("ingestion: read failed for %s: %w", src.Location, err)
		}

		name := src.Name
		if name == "" {
			name = deriveName(src.Location)
		}

		n, err := p.library.Ingest(ctx, name, content)
		if err != nil {
			return fmt.Errorf("ingestion: indexing failed for %s: %w", src.Location, err)
		}

		progress(fmt.Sprintf("ingested %d chunks from %s as %q", n, src.Location, name))
	}

	return nil
}

// read returns the content of a source, fetching URLs and reading everything
// else from the filesystem.
func (p *Pipeline) read(ctx context.Context, location string) (string, error) {
	if isURL(location) {
		return p.fetch(ctx, location)
	}

	f, err := os.Open(location)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, p.cfg.MaxFileSize))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html, text/markdown")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxFileSize))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}

// isURL reports whether location looks like an HTTP(S) URL.
func isURL(location string) bool {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return false
	}
	u, err := url.Parse(location)
	return err == nil && u.Host != ""
}

// deriveName turns a source location into a stable document name: the base
// file name for paths, host + path for URLs.
func deriveName(location string) string {
	if isURL(location) {
		u, err := url.Parse(location)
		if err == nil {
			name := u.Host + u.Path
			return strings.TrimSuffix(name, "/")
		}
	}
	return filepath.Base(location)
}
