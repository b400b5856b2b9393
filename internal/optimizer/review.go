package optimizer

import (
	"context"

	"github.com/pkg/errors"
)

// Proposal is a rewritten value awaiting the user's decision.
type Proposal struct {
	Key       string `json:"key"`
	Original  string `json:"original"`
	Optimized string `json:"optimized"`
}

// PreferenceWriter persists a single preference value.
type PreferenceWriter interface {
	UpdatePreference(ctx context.Context, key, value string) error
}

// Propose optimizes value and, on success, returns a proposal to review.
// Nothing is stored until the proposal is accepted.
func (o *Optimizer) Propose(ctx context.Context, key, value string) (*Proposal, Result) {
	result := o.Optimize(ctx, key, value)
	if !result.Success {
		return nil, result
	}
	return &Proposal{Key: key, Original: value, Optimized: result.OptimizedValue}, result
}

// Accept stores the proposal's optimized value.
func Accept(ctx context.Context, w PreferenceWriter, p Proposal) error {
	if p.Key == "" {
		return errors.New("proposal has no key")
	}
	return errors.Wrapf(w.UpdatePreference(ctx, p.Key, p.Optimized), "accepting optimization for %q", p.Key)
}
