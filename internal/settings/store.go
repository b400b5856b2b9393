package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/nightcrawler/internal/llm"
)

// Store is the preference store. Every update reads the current record, merges the
// changed section and writes the whole record back.
type Store struct {
	backend  Backend
	vault    Vault
	validate *validator.Validate
	logger   logrus.FieldLogger

	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithVault keeps the API key in v instead of the settings record.
func WithVault(v Vault) Option {
	return func(s *Store) { s.vault = v }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store on top of backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		validate: validator.New(),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Get returns the stored settings merged over the defaults.
func (s *Store) Get(ctx context.Context) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx)
}

// Save validates and replaces the whole record.
func (s *Store) Save(ctx context.Context, settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, settings)
}

// UpdatePersonalPreferences replaces the preferences section.
func (s *Store) UpdatePersonalPreferences(ctx context.Context, prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx)
	if err != nil {
		return err
	}
	current.PersonalPreferences = prefs
	return s.save(ctx, current)
}

// UpdatePreference sets a single preference value, keeping everything else.
func (s *Store) UpdatePreference(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Field: "key", Message: "preference key is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx)
	if err != nil {
		return err
	}
	current.PersonalPreferences[key] = value
	return s.save(ctx, current)
}

// UpdateAIConfiguration replaces the AI configuration section. A blank model,
// or the previous provider's default model, becomes the new provider's default.
func (s *Store) UpdateAIConfiguration(ctx context.Context, config AIConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx)
	if err != nil {
		return err
	}
	current.AIConfiguration = config
	return s.save(ctx, current)
}

// Reset rewrites the defaults and returns them.
func (s *Store) Reset(ctx context.Context) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := Defaults()
	if err := s.save(ctx, defaults); err != nil {
		return nil, err
	}
	s.logger.Info("settings reset to defaults")
	return Defaults(), nil
}

// Preferences returns the current personal preferences.
func (s *Store) Preferences(ctx context.Context) (Preferences, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return settings.PersonalPreferences, nil
}

// AIConfig implements llm.ConfigSource.
func (s *Store) AIConfig(ctx context.Context) (llm.Config, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return llm.Config{}, err
	}
	return settings.AIConfiguration.LLMConfig(), nil
}

// Validate checks a record without saving it.
func (s *Store) Validate(settings *Settings) error {
	if settings == nil {
		return &ValidationError{Field: "settings", Message: "settings are required"}
	}

	if err := s.validate.Struct(settings.AIConfiguration); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("failed on '%s'", fe.Tag())}
		}
		return errors.Wrap(err, "validating AI configuration")
	}

	ai := settings.AIConfiguration
	if ai.APIKey != "" {
		provider := llm.ParseProvider(ai.Provider)
		if err := llm.ValidateCredential(provider, ai.APIKey); err != nil {
			return &ValidationError{
				Field: "openaiApiKey",
				Message: fmt.Sprintf("Please enter a valid %s API key (starts with %s)",
					provider.DisplayName(), llm.CredentialPrefix(provider)),
			}
		}
	}
	return nil
}

func (s *Store) get(ctx context.Context) (*Settings, error) {
	raw, err := s.backend.Load(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return s.withSecret(Defaults())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settings")
	}

	var stored Settings
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	return s.withSecret(merge(&stored))
}

func (s *Store) save(ctx context.Context, settings *Settings) error {
	if settings != nil {
		reconciled := *settings
		reconciled.AIConfiguration = settings.AIConfiguration.reconcileModel()
		settings = &reconciled
	}
	if err := s.Validate(settings); err != nil {
		return err
	}

	record := Settings{
		PersonalPreferences: make(Preferences, len(settings.PersonalPreferences)),
		AIConfiguration:     settings.AIConfiguration,
	}
	for k, v := range settings.PersonalPreferences {
		if strings.TrimSpace(k) != "" {
			record.PersonalPreferences[k] = v
		}
	}

	if s.vault != nil {
		account := credentialAccount(record.AIConfiguration.Provider)
		if err := s.vault.Set(account, record.AIConfiguration.APIKey); err != nil {
			return errors.Wrap(err, "failed to store API key")
		}
		record.AIConfiguration.APIKey = ""
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}
	if err := s.backend.Save(ctx, StorageKey, data); err != nil {
		return errors.Wrap(err, "failed to save settings")
	}

	s.logger.WithField("preferences", len(record.PersonalPreferences)).Debug("settings saved")
	return nil
}

func (s *Store) withSecret(settings *Settings) (*Settings, error) {
	if s.vault == nil || settings.AIConfiguration.APIKey != "" {
		return settings, nil
	}
	secret, err := s.vault.Get(credentialAccount(settings.AIConfiguration.Provider))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read API key")
	}
	settings.AIConfiguration.APIKey = secret
	return settings, nil
}
