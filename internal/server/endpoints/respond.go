package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jackzampolin/reel/internal/export"
	"github.com/jackzampolin/reel/internal/generation"
	"github.com/jackzampolin/reel/internal/svcctx"
)

// StatusClientClosedRequest is reported when the caller went away before
// the generation finished.
const StatusClientClosedRequest = 499

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// holdOpen lifts the server's write deadline for a handler that waits on
// provider jobs. The request context still ends the work when the caller
// goes away.
func holdOpen(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps a store or generation error to its HTTP status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= 500 {
		svcctx.LoggerFrom(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

// classify is the single place generation outcomes become status codes.
func classify(err error) (int, string) {
	var composition *generation.CompositionError
	var submission *generation.SubmissionError
	switch {
	case errors.Is(err, generation.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generation.ErrStoryBusy):
		return http.StatusConflict, "story_busy"
	case errors.Is(err, generation.ErrInProgress):
		return http.StatusConflict, "in_progress"
	case errors.Is(err, generation.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.As(err, &composition):
		return http.StatusUnprocessableEntity, "composition_failed"
	case errors.As(err, &submission):
		return http.StatusBadGateway, "submission_failed"
	case errors.Is(err, generation.ErrGenerationTimedOut):
		return http.StatusGatewayTimeout, "timed_out"
	case errors.Is(err, generation.ErrGenerationFailed):
		return http.StatusFailedDependency, "generation_failed"
	case errors.Is(err, generation.ErrCancelled), errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "cancelled"
	case errors.Is(err, export.ErrNoImages):
		return http.StatusConflict, "no_images"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
