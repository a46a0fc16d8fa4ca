// Package source downloads the tracked site and extracts the latest
// episodes it lists, grouped by title.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultUserAgent is sent when no other agent is configured.
const DefaultUserAgent = "Mozilla/5.0"

const maxPageSize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads pages. It never fails loudly: any problem is logged
// and yields an empty page.
type Fetcher struct {
	client    HTTPClient
	userAgent string
	timeout   time.Duration
	log       *slog.Logger
}

// NewFetcher creates a Fetcher with the given HTTP client and User-Agent.
func NewFetcher(client HTTPClient, userAgent string, log *slog.Logger) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		timeout:   30 * time.Second,
		log:       log,
	}
}

// Fetch returns the body of the page at url, or "" on any failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) string {
	body, err := f.get(ctx, url)
	if err != nil {
		f.log.Error("download page", "url", url, "error", err)
		return ""
	}
	return body
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
