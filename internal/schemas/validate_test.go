package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsSchema_IsValidJSON(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(SettingsSchema()), &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestValidateSettings_Valid(t *testing.T) {
	doc := `{
		"personalPreferences": {"Job Title": "Backend Engineer", "Location": ""},
		"aiConfiguration": {"openaiApiKey": "sk-test", "openaiModel": "gpt-4o", "provider": "openai"}
	}`
	assert.NoError(t, ValidateSettings([]byte(doc)))
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "missing ai configuration",
			doc:   `{"personalPreferences": {}}`,
			field: "(root)",
		},
		{
			name:  "non-string preference",
			doc:   `{"personalPreferences": {"Job Title": 3}, "aiConfiguration": {"openaiModel": "gpt-4o"}}`,
			field: "personalPreferences.Job Title",
		},
		{
			name:  "unknown provider",
			doc:   `{"personalPreferences": {}, "aiConfiguration": {"openaiModel": "gpt-4o", "provider": "claude"}}`,
			field: "aiConfiguration.provider",
		},
		{
			name:  "empty model",
			doc:   `{"personalPreferences": {}, "aiConfiguration": {"openaiModel": ""}}`,
			field: "aiConfiguration.openaiModel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSettings([]byte(tt.doc))
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, tt.field, validationErr.Errors[0].Field)
		})
	}
}

func TestValidateSettings_Malformed(t *testing.T) {
	err := ValidateSettings([]byte(`{not json`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}
