package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// OpenAIClient implements Provider against an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	config     Config
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI client. A nil httpClient uses a client
// without its own timeout; cancellation comes from the request context.
func NewOpenAIClient(config Config, httpClient *http.Client) *OpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	config.Provider = ProviderOpenAI
	return &OpenAIClient{
		config:     config.WithDefaults(),
		httpClient: httpClient,
	}
}

// ValidateConfig reports whether the configured key is usable.
func (c *OpenAIClient) ValidateConfig() error {
	return ValidateCredential(ProviderOpenAI, c.config.APIKey)
}

// Complete issues one chat-completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    buildMessages(req),
		Temperature: req.temperature(),
		MaxTokens:   req.maxTokens(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal completion request")
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "completion request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read completion response")
	}

	var data chatResponse
	decodeErr := json.Unmarshal(raw, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil && data.Error != nil {
			apiErr.Message = data.Error.Message
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, "failed to decode completion response")
	}
	if len(data.Choices) == 0 {
		return nil, errors.New("no choices in completion response")
	}

	return &Completion{
		Content: StripWrappingQuotes(strings.TrimSpace(data.Choices[0].Message.Content)),
		Usage:   data.Usage,
	}, nil
}
