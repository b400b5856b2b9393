// Package optimizer rewrites personal preference values into a more
// professional form using the per-key prompt templates.
package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/nightcrawler/internal/llm"
	"github.com/jonathan/nightcrawler/internal/prompts"
	"github.com/jonathan/nightcrawler/internal/settings"
)

// DefaultBatchDelay is the pause between calls in a batch run.
const DefaultBatchDelay = 200 * time.Millisecond

const (
	optimizeTemperature = 0.7
	optimizeMaxTokens   = 500
)

// LLM is the completion capability the optimizer needs.
type LLM interface {
	Call(ctx context.Context, req llm.Request) llm.Response
}

// Result is the outcome of one optimization. OptimizedValue is always usable:
// on failure it holds the original value.
type Result struct {
	Success        bool   `json:"success"`
	OptimizedValue string `json:"optimizedValue"`
	Error          string `json:"error,omitempty"`
}

// Optimizer rewrites preference values.
type Optimizer struct {
	llm        LLM
	batchDelay time.Duration
	logger     logrus.FieldLogger
}

// Option customizes an Optimizer.
type Option func(*Optimizer)

// WithBatchDelay sets the pause between calls in OptimizeAll.
func WithBatchDelay(d time.Duration) Option {
	return func(o *Optimizer) { o.batchDelay = d }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Optimizer) { o.logger = logger }
}

// New creates an Optimizer.
func New(client LLM, opts ...Option) *Optimizer {
	o := &Optimizer{
		llm:        client,
		batchDelay: DefaultBatchDelay,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize rewrites value using the template for key. It never fails outward.
func (o *Optimizer) Optimize(ctx context.Context, key, value string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithField("key", key).WithField("panic", r).Error("optimization panicked")
			result = Result{OptimizedValue: value, Error: "Unknown error"}
		}
	}()

	optimizer, ok := prompts.OptimizerFor(key)
	if !ok {
		return Result{
			OptimizedValue: value,
			Error:          fmt.Sprintf("No optimizer prompt found for key: %s", key),
		}
	}

	if strings.TrimSpace(value) == "" {
		return Result{
			OptimizedValue: value,
			Error:          "No content to optimize",
		}
	}

	resp := o.llm.Call(ctx, llm.Request{
		SystemPrompt: optimizer.Prompt,
		UserPrompt:   prompts.OptimizeUserPrompt(key, value),
		Temperature:  optimizeTemperature,
		MaxTokens:    optimizeMaxTokens,
	})
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "LLM call failed"
		}
		o.logger.WithField("key", key).WithField("error", msg).Warn("optimization failed")
		return Result{OptimizedValue: value, Error: msg}
	}

	return Result{Success: true, OptimizedValue: resp.Content}
}

// EntryResult records the outcome for one entry of a batch.
type EntryResult struct {
	Key    string `json:"key"`
	Result Result `json:"result"`
}

// BatchReport summarizes an OptimizeAll run.
type BatchReport struct {
	Optimized int                   `json:"optimized"`
	Attempted int                   `json:"attempted"`
	Entries   []settings.Preference `json:"entries"`
	Results   []EntryResult         `json:"results"`
}

// Summary renders the report the way it is shown to the user.
func (r BatchReport) Summary() string {
	return fmt.Sprintf("Optimized %d/%d preferences", r.Optimized, r.Attempted)
}

// Progress is called after each attempted entry of a batch.
type Progress func(entry EntryResult, attempted, total int)

// OptimizeAll optimizes every entry with a non-blank key and value, one at a
// time, pausing between calls. Failed entries keep their value. Cancelling ctx
// stops the run before the next entry; the report covers what was attempted.
func (o *Optimizer) OptimizeAll(ctx context.Context, entries []settings.Preference) BatchReport {
	return o.OptimizeAllWithProgress(ctx, entries, nil)
}

// OptimizeAllWithProgress is OptimizeAll with a per-entry callback.
func (o *Optimizer) OptimizeAllWithProgress(ctx context.Context, entries []settings.Preference, progress Progress) BatchReport {
	report := BatchReport{Entries: make([]settings.Preference, len(entries))}
	copy(report.Entries, entries)
	total := CountEligible(entries)

	for i, entry := range report.Entries {
		if strings.TrimSpace(entry.Key) == "" || strings.TrimSpace(entry.Value) == "" {
			continue
		}
		if report.Attempted > 0 && !o.pause(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		report.Attempted++
		result := o.Optimize(ctx, entry.Key, entry.Value)
		entryResult := EntryResult{Key: entry.Key, Result: result}
		report.Results = append(report.Results, entryResult)
		if result.Success {
			report.Entries[i].Value = result.OptimizedValue
			report.Optimized++
		}
		if progress != nil {
			progress(entryResult, report.Attempted, total)
		}
	}

	o.logger.WithFields(logrus.Fields{
		"optimized": report.Optimized,
		"attempted": report.Attempted,
	}).Info("batch optimization finished")
	return report
}

// CountEligible returns how many entries a batch run would attempt.
func CountEligible(entries []settings.Preference) int {
	n := 0
	for _, e := range entries {
		if strings.TrimSpace(e.Key) != "" && strings.TrimSpace(e.Value) != "" {
			n++
		}
	}
	return n
}

func (o *Optimizer) pause(ctx context.Context) bool {
	if o.batchDelay <= 0 {
		return true
	}
	timer := time.NewTimer(o.batchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
