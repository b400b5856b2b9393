package prompts

import (
	"encoding/json"
	"strings"
	"sync"
)

const (
	optimizersFile = "optimizers.json"
	optimizingFile = "optimizing.json"
	matchingFile   = "matching.json"
)

// Optimizer is the rewrite instruction for one preference key.
type Optimizer struct {
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
}

var (
	optimizersOnce sync.Once
	optimizers     []Optimizer
)

// Optimizers returns the optimizer table in display order.
func Optimizers() []Optimizer {
	optimizersOnce.Do(func() {
		data, err := promptFiles.ReadFile(optimizersFile)
		if err != nil {
			panic("failed to read " + optimizersFile + ": " + err.Error())
		}
		if err := json.Unmarshal(data, &optimizers); err != nil {
			panic("failed to parse " + optimizersFile + ": " + err.Error())
		}
	})
	out := make([]Optimizer, len(optimizers))
	copy(out, optimizers)
	return out
}

// OptimizerFor finds the optimizer whose key matches key case-insensitively.
func OptimizerFor(key string) (Optimizer, bool) {
	for _, opt := range Optimizers() {
		if strings.EqualFold(opt.Key, key) {
			return opt, true
		}
	}
	return Optimizer{}, false
}

// OptimizerKeys lists the keys that have an optimizer.
func OptimizerKeys() []string {
	opts := Optimizers()
	keys := make([]string, len(opts))
	for i, opt := range opts {
		keys[i] = opt.Key
	}
	return keys
}

// OptimizeUserPrompt renders the user message sent along with an optimizer prompt.
func OptimizeUserPrompt(key, value string) string {
	return Format(MustGet(optimizingFile, "user"), map[string]string{
		"Key":   strings.ToLower(key),
		"Value": value,
	})
}

// JobMatchSystemPrompt is the system message for job-fit analysis.
func JobMatchSystemPrompt() string {
	return MustGet(matchingFile, "system")
}

// JobMatchPrompt embeds the job, company and candidate sections under their labels.
func JobMatchPrompt(jobDescription, companyInfo, userPreferences string) string {
	return Format(MustGet(matchingFile, "template"), map[string]string{
		"Instructions":     MustGet(matchingFile, "instructions"),
		"JobDescription":   jobDescription,
		"CompanyInfo":      companyInfo,
		"CandidateProfile": userPreferences,
	})
}
