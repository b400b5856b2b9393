// Package server provides the HTTP settings API: preferences, credentials,
// optimization review and one-shot job matching.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/matching"
	"github.com/jonathan/nightcrawler/internal/optimizer"
	"github.com/jonathan/nightcrawler/internal/settings"
)

// SettingsStore is the persistence the API drives.
type SettingsStore interface {
	Get(ctx context.Context) (*settings.Settings, error)
	UpdatePersonalPreferences(ctx context.Context, prefs settings.Preferences) error
	UpdatePreference(ctx context.Context, key, value string) error
	UpdateAIConfiguration(ctx context.Context, config settings.AIConfiguration) error
	Reset(ctx context.Context) (*settings.Settings, error)
	Export(ctx context.Context, redact bool) ([]byte, error)
	Import(ctx context.Context, data []byte) (*settings.Settings, error)
}

// PostingLoader loads job text from a URL or file.
type PostingLoader func(ctx context.Context, location string) (*fetch.Posting, error)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	store      SettingsStore
	optimizer  *optimizer.Optimizer
	analyzer   *matching.Analyzer
	loadPost   PostingLoader
	validate   *validator.Validate
	logger     logrus.FieldLogger
	corsOrigin []string
}

// Config holds server configuration
type Config struct {
	Host string
	Port int
	// CORSOrigin is a comma-separated allow-list of browser origins, or "*".
	// Empty sends no CORS headers.
	CORSOrigin string
}

// Deps are the components behind the API.
type Deps struct {
	Store     SettingsStore
	Optimizer *optimizer.Optimizer
	Analyzer  *matching.Analyzer
	Logger    logrus.FieldLogger

	// LoadPosting is optional; without it /match needs the job text inline.
	LoadPosting PostingLoader
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		store:      deps.Store,
		optimizer:  deps.Optimizer,
		analyzer:   deps.Analyzer,
		loadPost:   deps.LoadPosting,
		validate:   validator.New(),
		logger:     logger,
		corsOrigin: parseOrigins(cfg.CORSOrigin),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("PUT /settings/preferences", s.handleUpdatePreferences)
	mux.HandleFunc("PUT /settings/ai", s.handleUpdateAIConfiguration)
	mux.HandleFunc("POST /settings/reset", s.handleReset)
	mux.HandleFunc("GET /settings/export", s.handleExport)
	mux.HandleFunc("POST /settings/import", s.handleImport)

	mux.HandleFunc("POST /optimize", s.handleOptimize)
	mux.HandleFunc("POST /optimize/accept", s.handleAcceptOptimization)
	mux.HandleFunc("POST /optimize/all", s.handleOptimizeAll)
	mux.HandleFunc("POST /optimize/all/stream", s.handleOptimizeAllStream)

	mux.HandleFunc("POST /match", s.handleMatch)

	return s.withLogging(s.withCORS(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}
	s.logger.Info("server stopped")
	return nil
}

func parseOrigins(list string) []string {
	var origins []string
	for _, origin := range strings.Split(list, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not allowed.
func (s *Server) allowedOrigin(origin string) string {
	for _, allowed := range s.corsOrigin {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// withCORS adds CORS headers for allowed origins
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if allow := s.allowedOrigin(r.Header.Get("Origin")); allow != "" {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start),
		}).Info("request completed")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("error encoding JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Success: false, Error: message})
}

// failure writes err with the status it maps to.
func (s *Server) failure(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	s.errorResponse(w, status, Message(err))
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "Invalid request body: " + err.Error()}
	}
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ErrValidation{Field: fe.Field(), Message: fmt.Sprintf("%s is %s", fe.Field(), fe.Tag())}
		}
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}
