package llm

import (
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ConfigSource supplies the current provider configuration.
// settings.Store implements it; the configuration is re-read on every call.
type ConfigSource interface {
	AIConfig(ctx context.Context) (Config, error)
}

// ClientFactory builds a provider client for a configuration.
type ClientFactory func(ctx context.Context, config Config) (Client, error)

// Caller runs completion calls for the rest of the application and folds every
// failure into a Response. It never returns an error or panics.
type Caller struct {
	source  ConfigSource
	factory ClientFactory
	logger  logrus.FieldLogger
}

// CallerOption customizes a Caller.
type CallerOption func(*Caller)

// WithClientFactory replaces the default provider factory.
func WithClientFactory(factory ClientFactory) CallerOption {
	return func(c *Caller) { c.factory = factory }
}

// WithHTTPClient sets the HTTP client used by the default OpenAI factory.
func WithHTTPClient(httpClient *http.Client) CallerOption {
	return func(c *Caller) {
		c.factory = func(ctx context.Context, config Config) (Client, error) {
			return NewClient(ctx, config, httpClient)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) CallerOption {
	return func(c *Caller) { c.logger = logger }
}

// NewCaller creates a Caller reading configuration from source.
func NewCaller(source ConfigSource, opts ...CallerOption) *Caller {
	c := &Caller{
		source: source,
		factory: func(ctx context.Context, config Config) (Client, error) {
			return NewClient(ctx, config, nil)
		},
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs one completion call.
func (c *Caller) Call(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Error("LLM call panicked")
			resp = Response{Error: "Unknown error"}
		}
	}()

	config, err := c.source.AIConfig(ctx)
	if err != nil {
		return c.fail(err)
	}

	client, err := c.factory(ctx, config)
	if err != nil {
		return c.fail(err)
	}
	if closer, ok := client.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	completion, err := client.Complete(ctx, req)
	if err != nil {
		return c.fail(err)
	}

	if completion.Usage != nil {
		c.logger.WithFields(logrus.Fields{
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
		}).Debug("LLM call completed")
	}

	return Response{
		Content: completion.Content,
		Success: true,
		Usage:   completion.Usage,
	}
}

func (c *Caller) fail(err error) Response {
	c.logger.WithError(err).Warn("LLM call failed")
	return Response{Error: err.Error()}
}
