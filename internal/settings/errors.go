package settings

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by a Backend when no value exists for a key.
var ErrNotFound = errors.New("settings: key not found")

// ValidationError indicates a settings update was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
