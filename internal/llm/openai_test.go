package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body string, captured *chatRequest, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIClient_Complete_StripsQuotes(t *testing.T) {
	var captured chatRequest
	server := newTestServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"\"Good fit: strong match\""}}],"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}}`,
		&captured, nil)

	client := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil)
	completion, err := client.Complete(context.Background(), Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
	})
	require.NoError(t, err)
	assert.Equal(t, "Good fit: strong match", completion.Content)
	require.NotNil(t, completion.Usage)
	assert.Equal(t, 17, completion.Usage.TotalTokens)

	assert.Equal(t, DefaultOpenAIModel, captured.Model)
	assert.Equal(t, DefaultTemperature, captured.Temperature)
	assert.Equal(t, DefaultMaxTokens, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestOpenAIClient_Complete_NoSystemMessage(t *testing.T) {
	var captured chatRequest
	server := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`, &captured, nil)

	client := NewOpenAIClient(Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: server.URL}, nil)
	_, err := client.Complete(context.Background(), Request{UserPrompt: "hi", Temperature: 0.5, MaxTokens: 512})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 0.5, captured.Temperature)
	assert.Equal(t, 512, captured.MaxTokens)
}

func TestOpenAIClient_Complete_RemoteErrorVerbatim(t *testing.T) {
	server := newTestServer(t, http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided"}}`, nil, nil)

	client := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil)
	_, err := client.Complete(context.Background(), Request{UserPrompt: "hi"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Incorrect API key provided", err.Error())
}

func TestOpenAIClient_Complete_GenericStatusError(t *testing.T) {
	server := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`, nil, nil)

	client := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil)
	_, err := client.Complete(context.Background(), Request{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, "OpenAI API error: 502", err.Error())
}

func TestOpenAIClient_Complete_InvalidKeyNoNetwork(t *testing.T) {
	var hits int32
	server := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`, nil, &hits)

	for _, key := range []string{"", "pk-live-123", " sk-leading-space"} {
		client := NewOpenAIClient(Config{APIKey: key, BaseURL: server.URL}, nil)
		_, err := client.Complete(context.Background(), Request{UserPrompt: "hi"})
		require.Error(t, err, key)

		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestOpenAIClient_Complete_NoChoices(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"choices":[]}`, nil, nil)

	client := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil)
	_, err := client.Complete(context.Background(), Request{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
