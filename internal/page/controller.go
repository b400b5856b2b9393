package page

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/nightcrawler/internal/matching"
	"github.com/jonathan/nightcrawler/internal/settings"
)

// User-facing alert texts.
const (
	MsgNoJobInfo       = "Could not extract job information from this page."
	MsgAnalysisTitle   = "Job Match Analysis"
	MsgAnalysisFailed  = "Analysis failed: "
	MsgPreferenceError = "Error loading preferences from settings"
)

// State is whether the match button is currently rendered.
type State int

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// Surface is the live page the controller drives.
type Surface interface {
	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)
	// Snapshot returns the document HTML with rendered sizes stamped on
	// candidate elements.
	Snapshot(ctx context.Context) (string, error)
	// Inject removes any stale container and mounts a fresh match button next
	// to the anchor.
	Inject(ctx context.Context) error
	// Teardown removes the injected container if present.
	Teardown(ctx context.Context) error
	// Alert shows a modal message to the user.
	Alert(ctx context.Context, message string) error
}

// PreferenceSource supplies the stored personal preferences.
type PreferenceSource interface {
	Preferences(ctx context.Context) (settings.Preferences, error)
}

// JobAnalyzer runs a job-fit analysis.
type JobAnalyzer interface {
	Analyze(ctx context.Context, req matching.Request) matching.Result
}

// Controller keeps the match button in sync with the page and handles clicks.
// Detection passes and analyses never overlap.
type Controller struct {
	surface  Surface
	prefs    PreferenceSource
	analyzer JobAnalyzer
	logger   logrus.FieldLogger

	mu    sync.Mutex
	state State
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a Controller in the Inactive state.
func NewController(surface Surface, prefs PreferenceSource, analyzer JobAnalyzer, opts ...ControllerOption) *Controller {
	c := &Controller{
		surface:  surface,
		prefs:    prefs,
		analyzer: analyzer,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the state after the last detection pass.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Detect runs one detection pass and returns the resulting state.
func (c *Controller) Detect(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url, err := c.surface.URL(ctx)
	if err != nil {
		return c.state, errors.Wrap(err, "reading page URL")
	}
	log := c.logger.WithField("url", url)

	if !IsJobPage(url) {
		log.Debug("not a job page")
		return c.deactivate(ctx)
	}

	html, err := c.surface.Snapshot(ctx)
	if err != nil {
		return c.state, errors.Wrap(err, "taking page snapshot")
	}
	doc, err := ParseSnapshot(html)
	if err != nil {
		return c.state, err
	}
	if FindAnchor(doc).Length() == 0 {
		log.Debug("save button not found")
		return c.deactivate(ctx)
	}

	if err := c.surface.Inject(ctx); err != nil {
		c.state = Inactive
		return c.state, errors.Wrap(err, "injecting match button")
	}
	if c.state != Active {
		log.WithField("state", Active).Info("match button injected")
	}
	c.state = Active
	return c.state, nil
}

func (c *Controller) deactivate(ctx context.Context) (State, error) {
	if err := c.surface.Teardown(ctx); err != nil {
		return c.state, errors.Wrap(err, "removing match button")
	}
	if c.state != Inactive {
		c.logger.WithField("state", Inactive).Info("match button removed")
	}
	c.state = Inactive
	return c.state, nil
}

// Analyze extracts the posting from the current page, runs the analysis and
// alerts the verdict or the failure. Only alert delivery errors are returned.
func (c *Controller) Analyze(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	extraction, err := c.extract(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("extraction failed")
	}
	if extraction.Empty() {
		return c.surface.Alert(ctx, MsgNoJobInfo)
	}

	c.logger.WithFields(logrus.Fields{
		"job_chars":     len(extraction.JobDescription),
		"company_chars": len(extraction.CompanyInfo),
	}).Info("starting job analysis")

	result := c.analyzer.Analyze(ctx, matching.Request{
		JobDescription:  extraction.JobDescription,
		CompanyInfo:     extraction.CompanyInfo,
		UserPreferences: c.preferences(ctx),
	})
	return c.surface.Alert(ctx, FormatResult(result))
}

func (c *Controller) extract(ctx context.Context) (Extraction, error) {
	html, err := c.surface.Snapshot(ctx)
	if err != nil {
		return Extraction{}, errors.Wrap(err, "taking page snapshot")
	}
	doc, err := ParseSnapshot(html)
	if err != nil {
		return Extraction{}, err
	}
	return Extract(doc), nil
}

func (c *Controller) preferences(ctx context.Context) string {
	prefs, err := c.prefs.Preferences(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to load preferences")
		return MsgPreferenceError
	}
	return matching.FormatPreferences(prefs)
}

// FormatResult renders an analysis result as alert text.
func FormatResult(result matching.Result) string {
	if result.Success {
		return MsgAnalysisTitle + "\n\n" + result.Analysis
	}
	msg := result.Error
	if msg == "" {
		msg = "Unknown error"
	}
	return MsgAnalysisFailed + msg
}
