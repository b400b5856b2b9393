// Package llm provides the chat-completion client used for preference optimization
// and job-fit analysis, behind a single provider interface.
package llm

import "strings"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is the OpenAI chat-completions provider
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

const (
	// DefaultOpenAIModel is the model used when none is configured
	DefaultOpenAIModel = "gpt-4o"
	// DefaultGeminiModel is the Gemini model used when none is configured
	DefaultGeminiModel = "gemini-2.5-flash"

	// DefaultOpenAIBaseURL is the public OpenAI API root
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultTemperature applies when a request leaves temperature unset
	DefaultTemperature = 0.7
	// DefaultMaxTokens applies when a request leaves max tokens unset
	DefaultMaxTokens = 500
)

// credentialPrefixes holds the only validation applied to API keys.
var credentialPrefixes = map[Provider]string{
	ProviderOpenAI: "sk-",
	ProviderGemini: "AIza",
}

// Config holds everything needed to construct a provider client.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint root (used by tests and proxies)
	BaseURL string
}

// ParseProvider maps a stored provider name to a Provider, defaulting to OpenAI.
func ParseProvider(name string) Provider {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderGemini:
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}

// DefaultModel returns the model used for p when none is configured.
func DefaultModel(p Provider) string {
	if p == ProviderGemini {
		return DefaultGeminiModel
	}
	return DefaultOpenAIModel
}

// IsDefaultModel reports whether model is the default of any provider.
func IsDefaultModel(model string) bool {
	return model == DefaultOpenAIModel || model == DefaultGeminiModel
}

// CredentialPrefix returns the prefix a key must carry for the given provider.
func CredentialPrefix(p Provider) string {
	return credentialPrefixes[p]
}

// DisplayName returns the provider name used in user-facing messages.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGemini:
		return "Gemini"
	default:
		return "OpenAI"
	}
}

// ValidateCredential checks that key is present and carries the provider prefix.
func ValidateCredential(p Provider, key string) error {
	prefix := CredentialPrefix(p)
	if key == "" || !strings.HasPrefix(key, prefix) {
		return &ConfigError{
			Provider: p,
			Message:  "Invalid " + p.DisplayName() + " configuration. Please check your API key.",
		}
	}
	return nil
}

// WithDefaults returns a copy of c with empty fields filled in.
func (c Config) WithDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Model == "" {
		c.Model = DefaultModel(c.Provider)
	}
	if c.BaseURL == "" && c.Provider == ProviderOpenAI {
		c.BaseURL = DefaultOpenAIBaseURL
	}
	return c
}

// Validate checks the credential for the configured provider.
func (c Config) Validate() error {
	return ValidateCredential(c.WithDefaults().Provider, c.APIKey)
}
