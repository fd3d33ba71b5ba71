package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackzampolin/reel/internal/export"
	"github.com/jackzampolin/reel/internal/generation"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("scene x: %w", generation.ErrNotFound), http.StatusNotFound, "not_found"},
		{"in progress", generation.ErrInProgress, http.StatusConflict, "in_progress"},
		{"story busy", generation.ErrStoryBusy, http.StatusConflict, "story_busy"},
		{"conflict", generation.ErrConflict, http.StatusConflict, "conflict"},
		{"composition", &generation.CompositionError{Op: "scene", Err: errors.New("bad json")}, http.StatusUnprocessableEntity, "composition_failed"},
		{"submission", &generation.SubmissionError{Provider: "leonardo", Err: errors.New("402")}, http.StatusBadGateway, "submission_failed"},
		{"timed out", generation.ErrGenerationTimedOut, http.StatusGatewayTimeout, "timed_out"},
		{"failed", generation.ErrGenerationFailed, http.StatusFailedDependency, "generation_failed"},
		{"cancelled", generation.ErrCancelled, StatusClientClosedRequest, "cancelled"},
		{"context cancelled", context.Canceled, StatusClientClosedRequest, "cancelled"},
		{"no images", export.ErrNoImages, http.StatusConflict, "no_images"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("classify() = %d %q, want %d %q", status, code, tt.status, tt.code)
			}
		})
	}
}
