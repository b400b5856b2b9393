// Package matching produces a short job-fit verdict for a job posting and the
// candidate's preferences.
package matching

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/nightcrawler/internal/llm"
	"github.com/jonathan/nightcrawler/internal/prompts"
	"github.com/jonathan/nightcrawler/internal/settings"
)

const (
	analysisTemperature = 0.5
	analysisMaxTokens   = 512

	// NoPreferences stands in for the candidate profile when nothing is filled in.
	NoPreferences = "No preferences configured in settings"
)

// LLM is the completion capability the analyzer needs.
type LLM interface {
	Call(ctx context.Context, req llm.Request) llm.Response
}

// Request carries the scraped page text and the serialized preferences.
type Request struct {
	JobDescription  string `json:"jobDescription" validate:"required"`
	CompanyInfo     string `json:"companyInfo"`
	UserPreferences string `json:"userPreferences"`
}

// Result is the outcome of an analysis.
type Result struct {
	Success  bool   `json:"success"`
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Analyzer runs job-fit analyses.
type Analyzer struct {
	llm    LLM
	logger logrus.FieldLogger
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(client LLM, opts ...Option) *Analyzer {
	a := &Analyzer{llm: client, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze asks for a two-line verdict. Only the job description is required.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("panic", r).Error("job analysis panicked")
			result = Result{Error: "Unknown error"}
		}
	}()

	if strings.TrimSpace(req.JobDescription) == "" {
		return Result{Error: "Job description is required for analysis"}
	}

	a.logger.WithFields(logrus.Fields{
		"job_chars":     len(req.JobDescription),
		"company_chars": len(req.CompanyInfo),
	}).Debug("analyzing job fit")

	resp := a.llm.Call(ctx, llm.Request{
		SystemPrompt: prompts.JobMatchSystemPrompt(),
		UserPrompt:   prompts.JobMatchPrompt(req.JobDescription, req.CompanyInfo, req.UserPreferences),
		Temperature:  analysisTemperature,
		MaxTokens:    analysisMaxTokens,
	})
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "AI analysis failed"
		}
		a.logger.WithField("error", msg).Warn("job analysis failed")
		return Result{Error: msg}
	}

	return Result{Success: true, Analysis: strings.TrimSpace(resp.Content)}
}

// FormatPreferences serializes the non-blank preferences as "Key: value"
// lines in display order.
func FormatPreferences(prefs settings.Preferences) string {
	var lines []string
	for _, entry := range prefs.Ordered() {
		value := strings.TrimSpace(entry.Value)
		if value == "" {
			continue
		}
		lines = append(lines, entry.Key+": "+value)
	}
	if len(lines) == 0 {
		return NoPreferences
	}
	return strings.Join(lines, "\n")
}
