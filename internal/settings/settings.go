// Package settings persists the user's personal preferences and AI configuration
// as one record under a fixed storage key.
package settings

import (
	"sort"
	"strings"

	"github.com/jonathan/nightcrawler/internal/llm"
)

// StorageKey is the single key the settings record is stored under.
const StorageKey = "nightcrawler-settings"

// DefaultPreferenceKeys are the nine preference labels, in display order.
var DefaultPreferenceKeys = []string{
	"Job Title",
	"Experience",
	"Technologies",
	"Technologies To Avoid",
	"Education",
	"Work Style",
	"Location",
	"Salary Expectations",
	"Aspirations",
}

// Preferences maps a preference key to free text.
type Preferences map[string]string

// Preference is one key/value entry, used where display order matters.
type Preference struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AIConfiguration holds the API credential and model selection.
type AIConfiguration struct {
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=openai gemini"`
	APIKey   string `json:"openaiApiKey"`
	Model    string `json:"openaiModel" validate:"required"`
}

// Settings is the whole persisted record.
type Settings struct {
	PersonalPreferences Preferences     `json:"personalPreferences"`
	AIConfiguration     AIConfiguration `json:"aiConfiguration"`
}

// DefaultPreferences returns the nine default keys with empty values.
func DefaultPreferences() Preferences {
	prefs := make(Preferences, len(DefaultPreferenceKeys))
	for _, key := range DefaultPreferenceKeys {
		prefs[key] = ""
	}
	return prefs
}

// DefaultAIConfiguration returns the first-run AI configuration.
func DefaultAIConfiguration() AIConfiguration {
	return AIConfiguration{
		Provider: string(llm.ProviderOpenAI),
		APIKey:   "",
		Model:    llm.DefaultOpenAIModel,
	}
}

// Defaults returns a fresh default record.
func Defaults() *Settings {
	return &Settings{
		PersonalPreferences: DefaultPreferences(),
		AIConfiguration:     DefaultAIConfiguration(),
	}
}

// Ordered returns the entries in display order: default keys first in their
// fixed order, then any custom keys sorted alphabetically.
func (p Preferences) Ordered() []Preference {
	entries := make([]Preference, 0, len(p))
	seen := make(map[string]bool, len(DefaultPreferenceKeys))
	for _, key := range DefaultPreferenceKeys {
		if value, ok := p[key]; ok {
			entries = append(entries, Preference{Key: key, Value: value})
			seen[key] = true
		}
	}

	var custom []string
	for key := range p {
		if !seen[key] {
			custom = append(custom, key)
		}
	}
	sort.Strings(custom)
	for _, key := range custom {
		entries = append(entries, Preference{Key: key, Value: p[key]})
	}
	return entries
}

// FromEntries builds Preferences from an entry list, dropping entries whose key is blank.
func FromEntries(entries []Preference) Preferences {
	prefs := make(Preferences, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Key) == "" {
			continue
		}
		prefs[entry.Key] = entry.Value
	}
	return prefs
}

// Clone returns a copy of p.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// LLMConfig converts the stored configuration into a client configuration.
func (a AIConfiguration) LLMConfig() llm.Config {
	return llm.Config{
		Provider: llm.ParseProvider(a.Provider),
		APIKey:   a.APIKey,
		Model:    a.Model,
	}
}

// reconcileModel fills a blank model, or one still set to another provider's
// default, with the default for the configured provider.
func (a AIConfiguration) reconcileModel() AIConfiguration {
	want := llm.DefaultModel(llm.ParseProvider(a.Provider))
	model := strings.TrimSpace(a.Model)
	if model == "" || (model != want && llm.IsDefaultModel(model)) {
		model = want
	}
	a.Model = model
	return a
}

// merge overlays stored sections on top of the defaults.
func merge(stored *Settings) *Settings {
	out := Defaults()
	if stored == nil {
		return out
	}
	for k, v := range stored.PersonalPreferences {
		out.PersonalPreferences[k] = v
	}
	if stored.AIConfiguration.Provider != "" {
		out.AIConfiguration.Provider = stored.AIConfiguration.Provider
	}
	if stored.AIConfiguration.APIKey != "" {
		out.AIConfiguration.APIKey = stored.AIConfiguration.APIKey
	}
	if stored.AIConfiguration.Model != "" {
		out.AIConfiguration.Model = stored.AIConfiguration.Model
	}
	out.AIConfiguration = out.AIConfiguration.reconcileModel()
	return out
}

// MaskAPIKey shortens key for display, keeping only its first three and last
// four characters.
func MaskAPIKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return key[:3] + "..." + key[len(key)-4:]
	}
}
