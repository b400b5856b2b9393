package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/jonathan/nightcrawler/internal/settings"
)

const maxImportBytes = 1 << 20

// SettingsView is the settings record as served to the UI. The API key is
// never returned in full.
type SettingsView struct {
	PersonalPreferences []settings.Preference `json:"personalPreferences"`
	AIConfiguration     AIConfigurationView   `json:"aiConfiguration"`
}

// AIConfigurationView is the AI configuration with a masked key.
type AIConfigurationView struct {
	Provider   string `json:"provider"`
	Model      string `json:"openaiModel"`
	APIKeySet  bool   `json:"apiKeySet"`
	APIKeyHint string `json:"apiKeyHint,omitempty"`
}

// UpdatePreferencesRequest replaces the preference list. Entries with a blank
// key are dropped.
type UpdatePreferencesRequest struct {
	Preferences []settings.Preference `json:"preferences"`
}

// UpdateAIRequest updates the AI configuration. A nil APIKey keeps the stored
// key; an empty one clears it.
type UpdateAIRequest struct {
	Provider string  `json:"provider" validate:"omitempty,oneof=openai gemini"`
	APIKey   *string `json:"openaiApiKey"`
	Model    string  `json:"openaiModel" validate:"required"`
}

func newSettingsView(s *settings.Settings) SettingsView {
	key := s.AIConfiguration.APIKey
	return SettingsView{
		PersonalPreferences: s.PersonalPreferences.Ordered(),
		AIConfiguration: AIConfigurationView{
			Provider:   s.AIConfiguration.Provider,
			Model:      s.AIConfiguration.Model,
			APIKeySet:  key != "",
			APIKeyHint: settings.MaskAPIKey(key),
		},
	}
}

// handleGetSettings returns the stored settings, defaults filled in.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.store.Get(r.Context())
	if err != nil {
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, newSettingsView(current))
}

// handleUpdatePreferences saves the preference list.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req UpdatePreferencesRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, err)
		return
	}
	if err := s.store.UpdatePersonalPreferences(r.Context(), settings.FromEntries(req.Preferences)); err != nil {
		s.failure(w, err)
		return
	}
	s.respondSettings(w, r, "Preferences saved")
}

// handleUpdateAIConfiguration saves the credential and model selection.
func (s *Server) handleUpdateAIConfiguration(w http.ResponseWriter, r *http.Request) {
	var req UpdateAIRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, err)
		return
	}

	current, err := s.store.Get(r.Context())
	if err != nil {
		s.failure(w, err)
		return
	}
	config := settings.AIConfiguration{
		Provider: req.Provider,
		APIKey:   current.AIConfiguration.APIKey,
		Model:    req.Model,
	}
	if config.Provider == "" {
		config.Provider = current.AIConfiguration.Provider
	}
	if req.APIKey != nil {
		config.APIKey = *req.APIKey
	}

	if err := s.store.UpdateAIConfiguration(r.Context(), config); err != nil {
		s.failure(w, err)
		return
	}
	s.respondSettings(w, r, "AI configuration saved")
}

// handleReset restores the defaults.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	defaults, err := s.store.Reset(r.Context())
	if err != nil {
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Settings reset to defaults",
		"settings": newSettingsView(defaults),
	})
}

// handleExport downloads the settings document. The key is left out unless
// includeKey=true, which is refused for any request carrying an Origin header
// so that no web page can read the key back.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	includeKey, _ := strconv.ParseBool(r.URL.Query().Get("includeKey"))
	if includeKey && r.Header.Get("Origin") != "" {
		s.failure(w, &ErrForbidden{Message: "The API key can only be exported with `nightcrawler settings export --include-key`"})
		return
	}
	data, err := s.store.Export(r.Context(), !includeKey)
	if err != nil {
		s.failure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="nightcrawler-settings.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.WithError(err).Warn("writing export failed")
	}
}

// handleImport replaces the settings with an uploaded document.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		s.failure(w, &ErrValidation{Field: "body", Message: "Invalid request body: " + err.Error()})
		return
	}
	imported, err := s.store.Import(r.Context(), data)
	if err != nil {
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Settings imported",
		"settings": newSettingsView(imported),
	})
}

func (s *Server) respondSettings(w http.ResponseWriter, r *http.Request, message string) {
	current, err := s.store.Get(r.Context())
	if err != nil {
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  message,
		"settings": newSettingsView(current),
	})
}
