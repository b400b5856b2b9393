package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/llm"
	"github.com/jonathan/nightcrawler/internal/matching"
	"github.com/jonathan/nightcrawler/internal/optimizer"
	"github.com/jonathan/nightcrawler/internal/page"
	"github.com/jonathan/nightcrawler/internal/settings"
)

const testKey = "sk-test-1234567890abcd"

// fakeLLM returns a canned reply and records the prompts it saw.
type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	failure string
	prompts []string
}

func (f *fakeLLM) Call(_ context.Context, req llm.Request) llm.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.UserPrompt)
	if f.failure != "" {
		return llm.Response{Error: f.failure}
	}
	return llm.Response{Success: true, Content: f.reply}
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type testServer struct {
	*Server
	store *settings.Store
	llm   *fakeLLM
}

func newTestServer(t *testing.T, loader PostingLoader) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, Config{Host: "127.0.0.1", Port: 0}, loader)
}

func newTestServerWithConfig(t *testing.T, cfg Config, loader PostingLoader) *testServer {
	t.Helper()
	backend, err := settings.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	store := settings.NewStore(backend, settings.WithLogger(logger))
	t.Cleanup(func() { _ = store.Close() })

	fake := &fakeLLM{reply: "Polished value"}
	srv := New(cfg, Deps{
		Store:       store,
		Optimizer:   optimizer.New(fake, optimizer.WithBatchDelay(0), optimizer.WithLogger(logger)),
		Analyzer:    matching.NewAnalyzer(fake, matching.WithLogger(logger)),
		LoadPosting: loader,
		Logger:      logger,
	})
	return &testServer{Server: srv, store: store, llm: fake}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCORS_NoOriginsConfigured(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/settings", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_AllowList(t *testing.T) {
	ts := newTestServerWithConfig(t, Config{CORSOrigin: "http://localhost:3000, chrome-extension://abc"}, nil)

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:3000", "http://localhost:3000"},
		{"chrome-extension://abc", "chrome-extension://abc"},
		{"https://evil.example", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/settings", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			ts.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Wildcard(t *testing.T) {
	ts := newTestServerWithConfig(t, Config{CORSOrigin: "*"}, nil)
	rec := ts.do(t, http.MethodOptions, "/settings", nil)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestGetSettings_Defaults(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view SettingsView
	decodeBody(t, rec, &view)
	require.Len(t, view.PersonalPreferences, len(settings.DefaultPreferenceKeys))
	assert.Equal(t, "Job Title", view.PersonalPreferences[0].Key)
	assert.Equal(t, "gpt-4o", view.AIConfiguration.Model)
	assert.False(t, view.AIConfiguration.APIKeySet)
}

func TestUpdateAIConfiguration_MasksKey(t *testing.T) {
	ts := newTestServer(t, nil)
	key := testKey
	rec := ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{APIKey: &key, Model: "gpt-4o-mini"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), testKey)

	rec = ts.do(t, http.MethodGet, "/settings", nil)
	var view SettingsView
	decodeBody(t, rec, &view)
	assert.True(t, view.AIConfiguration.APIKeySet)
	assert.Equal(t, "sk-...abcd", view.AIConfiguration.APIKeyHint)
	assert.Equal(t, "gpt-4o-mini", view.AIConfiguration.Model)

	stored, err := ts.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testKey, stored.AIConfiguration.APIKey)
}

func TestUpdateAIConfiguration_SwitchToGeminiUsesGeminiModel(t *testing.T) {
	ts := newTestServer(t, nil)
	key := "AIzaSyTestKey123456"
	rec := ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{Provider: "gemini", APIKey: &key, Model: "gpt-4o"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cfg, err := ts.store.AIConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderGemini, cfg.Provider)
	assert.Equal(t, llm.DefaultGeminiModel, cfg.Model)
}

func TestUpdateAIConfiguration_OmittedKeyKeepsStored(t *testing.T) {
	ts := newTestServer(t, nil)
	key := testKey
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{APIKey: &key, Model: "gpt-4o"}).Code)

	rec := ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{Model: "gpt-4.1"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := ts.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testKey, stored.AIConfiguration.APIKey)
	assert.Equal(t, "gpt-4.1", stored.AIConfiguration.Model)
}

func TestUpdateAIConfiguration_InvalidKey(t *testing.T) {
	ts := newTestServer(t, nil)
	key := "not-a-key"
	rec := ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{APIKey: &key, Model: "gpt-4o"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "Please enter a valid OpenAI API key (starts with sk-)", resp.Error)
}

func TestUpdateAIConfiguration_ModelRequired(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPut, "/settings/ai", map[string]string{"provider": "openai"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePreferences(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPut, "/settings/preferences", UpdatePreferencesRequest{
		Preferences: []settings.Preference{
			{Key: "Job Title", Value: "Backend engineer"},
			{Key: "  ", Value: "dropped"},
			{Key: "Visa", Value: "Needs sponsorship"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := ts.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Backend engineer", stored.PersonalPreferences["Job Title"])
	assert.Equal(t, "Needs sponsorship", stored.PersonalPreferences["Visa"])
	assert.NotContains(t, stored.PersonalPreferences, "  ")
}

func TestUpdatePreferences_BadBody(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPut, "/settings/preferences", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request body")
}

func TestReset(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.store.UpdatePreference(context.Background(), "Job Title", "SRE"))

	rec := ts.do(t, http.MethodPost, "/settings/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := ts.store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored.PersonalPreferences["Job Title"])
}

func TestExportImport(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, ts.store.UpdatePreference(ctx, "Location", "Remote"))
	key := testKey
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{APIKey: &key, Model: "gpt-4o"}).Code)

	rec := ts.do(t, http.MethodGet, "/settings/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "nightcrawler-settings.json")
	assert.NotContains(t, rec.Body.String(), testKey)
	exported := rec.Body.Bytes()

	_, err := ts.store.Reset(ctx)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/settings/import", bytes.NewReader(exported))
	rec = httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := ts.store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Remote", stored.PersonalPreferences["Location"])
}

func TestExport_IncludeKey(t *testing.T) {
	ts := newTestServer(t, nil)
	key := testKey
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{APIKey: &key, Model: "gpt-4o"}).Code)

	rec := ts.do(t, http.MethodGet, "/settings/export?includeKey=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testKey)
}

func TestExport_IncludeKeyRefusedFromBrowser(t *testing.T) {
	ts := newTestServerWithConfig(t, Config{CORSOrigin: "*"}, nil)
	key := testKey
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/settings/ai", UpdateAIRequest{APIKey: &key, Model: "gpt-4o"}).Code)

	req := httptest.NewRequest(http.MethodGet, "/settings/export?includeKey=true", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), testKey)

	req = httptest.NewRequest(http.MethodGet, "/settings/export", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), testKey)
}

func TestImport_InvalidDocument(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/settings/import", strings.NewReader(`{"personalPreferences":{}}`))
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimize_ReturnsProposalWithoutSaving(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/optimize", OptimizeRequest{Key: "Job Title", Value: "backend dev"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp OptimizeResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Polished value", resp.OptimizedValue)
	require.NotNil(t, resp.Proposal)
	assert.Equal(t, "backend dev", resp.Proposal.Original)

	stored, err := ts.store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored.PersonalPreferences["Job Title"])
}

func TestOptimize_FailureKeepsOriginal(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.llm.failure = "Invalid OpenAI configuration. Please check your API key."

	rec := ts.do(t, http.MethodPost, "/optimize", OptimizeRequest{Key: "Job Title", Value: "backend dev"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp OptimizeResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "backend dev", resp.OptimizedValue)
	assert.Nil(t, resp.Proposal)
	assert.Equal(t, ts.llm.failure, resp.Error)
}

func TestOptimize_KeyRequired(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/optimize", OptimizeRequest{Value: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptOptimization(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/optimize/accept", AcceptRequest{Key: "Aspirations", Optimized: "Lead a platform team"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := ts.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lead a platform team", stored.PersonalPreferences["Aspirations"])
}

func TestOptimizeAll_SavesWhenAsked(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, ts.store.UpdatePreference(ctx, "Job Title", "backend dev"))
	require.NoError(t, ts.store.UpdatePreference(ctx, "Location", "remote pls"))

	rec := ts.do(t, http.MethodPost, "/optimize/all", BatchRequest{Save: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "Optimized 2/2 preferences", resp.Message)
	assert.True(t, resp.Saved)

	stored, err := ts.store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Polished value", stored.PersonalPreferences["Job Title"])
	assert.Equal(t, "Polished value", stored.PersonalPreferences["Location"])
	assert.Empty(t, stored.PersonalPreferences["Education"])
}

func TestOptimizeAll_NoBodyDoesNotSave(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, ts.store.UpdatePreference(ctx, "Job Title", "backend dev"))

	rec := ts.do(t, http.MethodPost, "/optimize/all", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "Optimized 1/1 preferences", resp.Message)
	assert.False(t, resp.Saved)

	stored, err := ts.store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backend dev", stored.PersonalPreferences["Job Title"])
}

func TestOptimizeAllStream(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/optimize/all/stream", BatchRequest{
		Preferences: []settings.Preference{
			{Key: "Job Title", Value: "backend dev"},
			{Key: "Education", Value: ""},
			{Key: "Experience", Value: "5 years"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	var events []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	assert.Equal(t, []string{"progress", "progress", "complete"}, events)
	assert.Contains(t, body, `"message":"Optimized 2/2 preferences"`)
}

func TestMatch_WithDescription(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.llm.reply = "Yes\nStrong Go background fits the role."
	require.NoError(t, ts.store.UpdatePreference(context.Background(), "Technologies", "Go, Postgres"))

	rec := ts.do(t, http.MethodPost, "/match", MatchRequest{JobDescription: "Build Go services", CompanyInfo: "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatchResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Yes\nStrong Go background fits the role.", resp.Analysis)
	assert.Equal(t, "request", resp.Source)
	assert.Contains(t, ts.llm.lastPrompt(), "Technologies: Go, Postgres")
}

func TestMatch_RequiresInput(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/match", MatchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/match", MatchRequest{URL: "https://example.com/jobs/view/1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatch_LoadsPosting(t *testing.T) {
	loader := func(_ context.Context, location string) (*fetch.Posting, error) {
		return &fetch.Posting{
			Location:   location,
			Source:     fetch.SourceHTTP,
			Extraction: page.Extraction{JobDescription: "Operate Kubernetes clusters", CompanyInfo: "Initech"},
		}, nil
	}
	ts := newTestServer(t, loader)
	ts.llm.reply = "No\nMostly ops work."

	rec := ts.do(t, http.MethodPost, "/match", MatchRequest{URL: "https://example.com/jobs/view/1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatchResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, fetch.SourceHTTP, resp.Source)
	assert.Equal(t, "Initech", resp.CompanyInfo)
	assert.Contains(t, ts.llm.lastPrompt(), "Operate Kubernetes clusters")
}

func TestMatch_RejectsLocalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "private.html")
	html := `<html><body><div class="job-details-module">PRIVATE LOCAL FILE CONTENT</div></body></html>`
	require.NoError(t, os.WriteFile(path, []byte(html), 0o600))

	loaded := false
	loader := func(ctx context.Context, location string) (*fetch.Posting, error) {
		loaded = true
		return fetch.LoadPosting(ctx, location, fetch.PostingOptions{})
	}
	ts := newTestServer(t, loader)

	for _, location := range []string{path, "file://" + path} {
		rec := ts.do(t, http.MethodPost, "/match", MatchRequest{URL: location})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "http:// or https://")
	}
	assert.False(t, loaded)
	assert.Empty(t, ts.llm.lastPrompt())
}

func TestMatch_NoPosting(t *testing.T) {
	loader := func(context.Context, string) (*fetch.Posting, error) {
		return nil, fetch.ErrNoPosting
	}
	ts := newTestServer(t, loader)

	rec := ts.do(t, http.MethodPost, "/match", MatchRequest{URL: "https://example.com/feed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), page.MsgNoJobInfo)
}

func TestStart_StopsOnCancel(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Start(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}
