package fetch

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jonathan/nightcrawler/internal/page"
)

// Where a posting's HTML came from.
const (
	SourceFile    = "file"
	SourceHTTP    = "http"
	SourceBrowser = "browser"
)

// ErrNoPosting is returned when no job text could be extracted.
var ErrNoPosting = errors.New(page.MsgNoJobInfo)

// Posting is the job text extracted from a URL or saved page.
type Posting struct {
	Location string `json:"location"`
	Source   string `json:"source"`
	page.Extraction
}

// PostingOptions controls how a posting is loaded.
type PostingOptions struct {
	Fetch *Options
	// Browser enables the headless Chrome fallback for URLs whose static HTML
	// holds no job text.
	Browser        bool
	BrowserTimeout time.Duration
}

// BrowserRenderer renders a URL and returns its HTML.
type BrowserRenderer func(ctx context.Context, url string) (string, error)

// IsURL reports whether location looks like an http(s) URL rather than a path.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// LoadPosting extracts job text from a URL or an HTML file on disk.
func LoadPosting(ctx context.Context, location string, opts PostingOptions) (*Posting, error) {
	if opts.Fetch == nil {
		opts.Fetch = DefaultOptions()
	}
	var render BrowserRenderer
	if opts.Browser {
		timeout := opts.BrowserTimeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		render = func(ctx context.Context, url string) (string, error) {
			return WithBrowser(ctx, url, timeout, opts.Fetch.logger())
		}
	}
	return loadPosting(ctx, location, opts.Fetch, render)
}

func loadPosting(ctx context.Context, location string, opts *Options, render BrowserRenderer) (*Posting, error) {
	if !IsURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", location)
		}
		return extractPosting(location, SourceFile, string(data))
	}

	result, err := URL(ctx, location, opts)
	if err == nil {
		posting, extractErr := extractPosting(location, SourceHTTP, result.HTML)
		if extractErr == nil || render == nil {
			return posting, extractErr
		}
		opts.logger().WithField("url", location).Info("no job text in static page, rendering in browser")
	} else if render == nil {
		return nil, err
	} else {
		opts.logger().WithError(err).WithField("url", location).Warn("fetch failed, rendering in browser")
	}

	html, err := render(ctx, location)
	if err != nil {
		return nil, err
	}
	return extractPosting(location, SourceBrowser, html)
}

func extractPosting(location, source, html string) (*Posting, error) {
	doc, err := page.ParseSnapshot(html)
	if err != nil {
		return nil, err
	}
	extraction := page.Extract(doc)
	if extraction.Empty() {
		return nil, ErrNoPosting
	}
	return &Posting{Location: location, Source: source, Extraction: extraction}, nil
}
