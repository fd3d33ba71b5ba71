package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackzampolin/reel/internal/providers"
)

// Default canvas, portrait for short-form video.
const (
	DefaultWidth  = 768
	DefaultHeight = 1344
)

// Submitter posts one generation request to the image provider.
// It never retries: any error is fatal to the submission.
type Submitter struct {
	provider providers.ImageProvider
	logger   *slog.Logger
}

// NewSubmitter creates a submitter for provider.
func NewSubmitter(provider providers.ImageProvider, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{provider: provider, logger: logger}
}

// Submit sends the request and returns the provider's job ID. params must
// already be sanitized; it is sanitized again so callers cannot leak
// rejected values through.
func (s *Submitter) Submit(ctx context.Context, prompt, modelID string, width, height int, params map[string]any) (string, error) {
	if s.provider == nil {
		return "", &SubmissionError{Provider: "none", Err: errors.New("no image provider configured")}
	}
	name := s.provider.Name()
	if strings.TrimSpace(prompt) == "" {
		return "", &SubmissionError{Provider: name, Err: errors.New("prompt is empty")}
	}
	if modelID == "" {
		modelID = providers.DefaultModelID
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	jobID, err := s.provider.Submit(ctx, &providers.ImageRequest{
		Prompt:  prompt,
		ModelID: modelID,
		Width:   width,
		Height:  height,
		Params:  Sanitize(params),
	})
	if err != nil {
		return "", &SubmissionError{Provider: name, Err: err}
	}
	if jobID == "" {
		return "", &SubmissionError{Provider: name, Err: errors.New("provider returned an empty job id")}
	}

	s.logger.Info("submitted generation", "provider", name, "job_id", jobID, "model", modelID)
	return jobID, nil
}
