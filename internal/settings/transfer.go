package settings

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jonathan/nightcrawler/internal/schemas"
)

// Export renders the current record as indented JSON. With redact set the
// API key is left out.
func (s *Store) Export(ctx context.Context, redact bool) ([]byte, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if redact {
		current.AIConfiguration.APIKey = ""
	}
	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode settings")
	}
	return data, nil
}

// Import validates data against the settings schema and replaces the stored
// record with it. An empty API key in data keeps the stored one.
func (s *Store) Import(ctx context.Context, data []byte) (*Settings, error) {
	if err := schemas.ValidateSettings(data); err != nil {
		return nil, errors.Wrap(err, "invalid settings document")
	}

	var imported Settings
	if err := json.Unmarshal(data, &imported); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if imported.PersonalPreferences == nil {
		imported.PersonalPreferences = Preferences{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if imported.AIConfiguration.APIKey == "" {
		current, err := s.get(ctx)
		if err != nil {
			return nil, err
		}
		imported.AIConfiguration.APIKey = current.AIConfiguration.APIKey
	}
	if err := s.save(ctx, &imported); err != nil {
		return nil, err
	}
	s.logger.WithField("preferences", len(imported.PersonalPreferences)).Info("settings imported")
	return s.get(ctx)
}
