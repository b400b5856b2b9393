// Package fetch - browser.go starts Chrome sessions for pages that render client-side.
package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/nightcrawler/internal/page"
)

// BrowserOptions configures the Chrome process.
type BrowserOptions struct {
	Headless bool
	// UserDataDir keeps cookies between runs so a logged-in session survives.
	UserDataDir string
	// ExecPath overrides Chrome discovery.
	ExecPath string
}

// NewBrowser starts Chrome and returns a tab context. Cancelling the returned
// func closes the browser. Requires Chrome/Chromium to be installed.
func NewBrowser(ctx context.Context, opts BrowserOptions) (context.Context, context.CancelFunc) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// WithBrowser renders a page in a headless browser and returns the rendered
// HTML with element sizes stamped for visibility checks.
func WithBrowser(ctx context.Context, url string, timeout time.Duration, logger logrus.FieldLogger) (string, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("url", url).Debug("starting headless browser")

	browserCtx, cancel := NewBrowser(ctx, BrowserOptions{Headless: true})
	defer cancel()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give client-side rendering time to finish.
		chromedp.Sleep(3*time.Second),
	)
	if err != nil {
		return "", errors.Wrap(err, "browser rendering failed")
	}

	html, err := page.NewChromeSurface(browserCtx, logger).Snapshot(browserCtx)
	if err != nil {
		return "", errors.Wrap(err, "browser rendering failed")
	}

	logger.WithField("bytes", len(html)).Debug("rendered page")
	return html, nil
}
