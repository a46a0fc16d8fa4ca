package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

// Format selects how a downloaded page is read.
type Format string

// Supported page formats.
const (
	FormatHTML Format = "html"
	FormatRSS  Format = "rss"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatHTML, FormatRSS:
		return f, nil
	}
	return "", fmt.Errorf("unknown source format %q, use: html, rss", s)
}

// Source is the single site the bot tracks.
type Source struct {
	url     string
	format  Format
	fetcher *Fetcher
	log     *slog.Logger
}

// New creates a Source reading url in the given format.
func New(url string, format Format, fetcher *Fetcher, log *slog.Logger) *Source {
	return &Source{url: url, format: format, fetcher: fetcher, log: log}
}

// URL returns the tracked address.
func (s *Source) URL() string {
	return s.url
}

// Scan downloads the tracked page and extracts its episodes. Failures
// produce an empty extraction.
func (s *Source) Scan(ctx context.Context) model.Extraction {
	return s.Extract(s.fetcher.Fetch(ctx, s.url))
}

// Extract reads an already downloaded page.
func (s *Source) Extract(page string) model.Extraction {
	if s.format == FormatRSS {
		return ExtractFeed(page, s.log)
	}
	return ExtractHTML(page, s.log)
}
