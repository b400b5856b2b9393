package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jonathan/nightcrawler/internal/optimizer"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// ProgressEvent reports one attempted entry of a batch run.
type ProgressEvent struct {
	Key       string           `json:"key"`
	Result    optimizer.Result `json:"result"`
	Attempted int              `json:"attempted"`
	Total     int              `json:"total"`
}

// WriteProgress sends a progress event
func (s *SSEWriter) WriteProgress(entry optimizer.EntryResult, attempted, total int) error {
	return s.WriteEvent("progress", ProgressEvent{
		Key:       entry.Key,
		Result:    entry.Result,
		Attempted: attempted,
		Total:     total,
	})
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", ErrorResponse{Error: message}) //nolint:errcheck
}

// WriteComplete sends a completion event
func (s *SSEWriter) WriteComplete(resp BatchResponse) {
	s.WriteEvent("complete", resp) //nolint:errcheck
}
