package page

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Timings controls when detection passes run.
type Timings struct {
	// Settle is the pause before the first pass and after each navigation.
	Settle time.Duration
	// NavigationDelay is the extra pause after a URL change is noticed.
	NavigationDelay time.Duration
	// InitialQuiet is the network idle window before the first pass.
	InitialQuiet time.Duration
	// NavigationQuiet is the network idle window after a navigation.
	NavigationQuiet time.Duration
	// PollInterval is how often the URL is checked for changes.
	PollInterval time.Duration
}

// DefaultTimings matches the host page's rendering behaviour.
func DefaultTimings() Timings {
	return Timings{
		Settle:          time.Second,
		NavigationDelay: time.Second,
		InitialQuiet:    1500 * time.Millisecond,
		NavigationQuiet: time.Second,
		PollInterval:    time.Second,
	}
}

// Detector runs a detection pass.
type Detector interface {
	Detect(ctx context.Context) (State, error)
}

// URLSource reports the page's current location.
type URLSource interface {
	URL(ctx context.Context) (string, error)
}

// Watcher re-runs detection once the page has loaded and again on every URL
// change, since the host is a single-page app that navigates without reloads.
type Watcher struct {
	detector Detector
	urls     URLSource
	idle     *IdleTracker
	timings  Timings
	logger   logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithTimings overrides the default timings.
func WithTimings(t Timings) WatcherOption {
	return func(w *Watcher) { w.timings = t }
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger logrus.FieldLogger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher creates a Watcher. A nil idle tracker skips the network idle wait.
func NewWatcher(detector Detector, urls URLSource, idle *IdleTracker, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		detector: detector,
		urls:     urls,
		idle:     idle,
		timings:  DefaultTimings(),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the watch loop. Calling Start on a running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		w.run(ctx)
	}(w.done)
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	if !w.settle(ctx, w.timings.Settle, w.timings.InitialQuiet) {
		return
	}
	current := w.currentURL(ctx)
	w.detect(ctx)

	interval := w.timings.PollInterval
	if interval <= 0 {
		interval = DefaultTimings().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		url := w.currentURL(ctx)
		if url == "" || url == current {
			continue
		}
		w.logger.WithFields(logrus.Fields{"from": current, "to": url}).Debug("url changed")
		current = url

		if !w.settle(ctx, w.timings.NavigationDelay+w.timings.Settle, w.timings.NavigationQuiet) {
			return
		}
		w.detect(ctx)
	}
}

func (w *Watcher) settle(ctx context.Context, delay, quiet time.Duration) bool {
	if !sleep(ctx, delay) {
		return false
	}
	if w.idle == nil {
		return true
	}
	return w.idle.Wait(ctx, quiet) == nil
}

func (w *Watcher) detect(ctx context.Context) {
	state, err := w.detector.Detect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.WithError(err).Warn("detection pass failed")
		}
		return
	}
	w.logger.WithField("state", state).Debug("detection pass complete")
}

func (w *Watcher) currentURL(ctx context.Context) string {
	url, err := w.urls.URL(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.WithError(err).Debug("failed to read url")
		}
		return ""
	}
	return url
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
