package server

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/llm"
	"github.com/jonathan/nightcrawler/internal/schemas"
	"github.com/jonathan/nightcrawler/internal/settings"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrForbidden is returned for requests the API refuses to serve.
type ErrForbidden struct {
	Message string
}

func (e *ErrForbidden) Error() string {
	return "forbidden: " + e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		reqErr    *ErrValidation
		forbidErr *ErrForbidden
		storeErr  *settings.ValidationError
		schemaErr *schemas.ValidationError
		configErr *llm.ConfigError
		fetchErr  *fetch.Error
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &storeErr), errors.As(err, &schemaErr),
		errors.As(err, &configErr), errors.Is(err, fetch.ErrNoPosting):
		return http.StatusBadRequest
	case errors.As(err, &forbidErr):
		return http.StatusForbidden
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var (
		reqErr    *ErrValidation
		forbidErr *ErrForbidden
		storeErr  *settings.ValidationError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Message
	case errors.As(err, &forbidErr):
		return forbidErr.Message
	case errors.As(err, &storeErr):
		return storeErr.Message
	default:
		return err.Error()
	}
}
