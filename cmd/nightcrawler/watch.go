package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/page"
)

var watchStartURL string

var errBrowserClosed = errors.New("browser closed")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open Chrome and add the match button to LinkedIn job pages",
	Long: `Launch a Chrome window on LinkedIn jobs. While you browse, job detail pages get
a "See Match" button next to the save button; clicking it analyzes the posting
against your stored preferences.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchStartURL, "url", "", "Page to open first (overrides config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	browserCtx, closeBrowser := fetch.NewBrowser(ctx, fetch.BrowserOptions{
		Headless:    a.cfg.Headless(),
		UserDataDir: a.cfg.Browser.UserDataDir,
		ExecPath:    a.cfg.Browser.ExecPath,
	})
	defer closeBrowser()

	logger := a.logger.WithField("component", "page")
	surface := page.NewChromeSurface(browserCtx, logger)
	idle := page.NewIdleTracker()
	if err := surface.Attach(idle); err != nil {
		return err
	}

	startURL := a.cfg.Browser.StartURL
	if watchStartURL != "" {
		startURL = watchStartURL
	}
	if err := surface.Navigate(ctx, startURL); err != nil {
		return err
	}

	controller := page.NewController(surface, a.store, a.analyzer, page.WithLogger(logger))
	watcher := page.NewWatcher(controller, surface, idle,
		page.WithTimings(a.cfg.PageTimings()),
		page.WithWatcherLogger(logger))

	a.logger.WithField("url", startURL).Info("watching for job pages, press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		return handleClicks(gctx, surface.Clicks(), controller, logger)
	})
	// Closing the window ends the browser context.
	g.Go(func() error {
		select {
		case <-browserCtx.Done():
			return errBrowserClosed
		case <-gctx.Done():
			return nil
		}
	})

	err = g.Wait()
	if ctx.Err() != nil || errors.Is(err, errBrowserClosed) {
		a.logger.Info("stopped watching")
		return nil
	}
	return err
}

// clickHandler runs an analysis for a button click.
type clickHandler interface {
	Analyze(ctx context.Context) error
}

// handleClicks runs one analysis per click until ctx is done. Failures are
// logged and do not stop the loop.
func handleClicks(ctx context.Context, clicks <-chan struct{}, h clickHandler, logger logrus.FieldLogger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-clicks:
			if err := h.Analyze(ctx); err != nil {
				logger.WithError(err).Warn("showing analysis failed")
			}
		}
	}
}
