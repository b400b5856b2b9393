package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// Client is the capability every provider implements: one completion call,
// returning generated text or a failure.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// NewClient creates a provider client based on configuration. The credential is
// validated first so a malformed key never reaches the network.
func NewClient(ctx context.Context, config Config, httpClient *http.Client) (Client, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	default:
		return NewOpenAIClient(config, httpClient), nil
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config Config) (*GeminiClient, error) {
	if err := ValidateCredential(ProviderGemini, config.APIKey); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}

	config.Provider = ProviderGemini
	return &GeminiClient{
		client: client,
		config: config.WithDefaults(),
	}, nil
}

// Complete generates text with the system prompt as the model's system instruction.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := c.client.GenerativeModel(c.config.Model)
	model.SetTemperature(float32(req.temperature()))
	model.SetMaxOutputTokens(int32(req.maxTokens()))
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate content")
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}

	completion := &Completion{Content: StripWrappingQuotes(strings.TrimSpace(text))}
	if meta := resp.UsageMetadata; meta != nil {
		completion.Usage = &Usage{
			PromptTokens:     int(meta.PromptTokenCount),
			CompletionTokens: int(meta.CandidatesTokenCount),
			TotalTokens:      int(meta.TotalTokenCount),
		}
	}
	return completion, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", errors.New("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
