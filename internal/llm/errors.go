package llm

import "fmt"

// ConfigError indicates the provider configuration is missing or malformed.
// It is always returned before any network attempt.
type ConfigError struct {
	Provider Provider
	Message  string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// APIError represents a non-success response from the completion endpoint.
type APIError struct {
	StatusCode int
	// Message is the remote error message, verbatim, when the body carried one
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("OpenAI API error: %d", e.StatusCode)
}
