package providers

import (
	"context"
	"fmt"
)

// ImageProvider submits asynchronous image generation jobs and reports on them.
// Submit returns as soon as the provider has accepted the job.
type ImageProvider interface {
	Submit(ctx context.Context, req *ImageRequest) (jobID string, err error)
	Status(ctx context.Context, jobID string) (*JobStatus, error)
	Name() string
}

// ImageRequest is a single-image generation request.
// Params holds provider parameters that have already been sanitized: every
// key present is sent as-is.
type ImageRequest struct {
	Prompt  string
	ModelID string
	Width   int
	Height  int
	Params  map[string]any
}

// JobState is the provider-reported state of a job. Providers may report
// states outside the three named here; callers treat those as not finished.
type JobState string

const (
	JobPending  JobState = "PENDING"
	JobComplete JobState = "COMPLETE"
	JobFailed   JobState = "FAILED"
)

// Artifact is one generated image.
type Artifact struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// JobStatus is one status observation of a job.
type JobStatus struct {
	State     JobState   `json:"state"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// APIError is a non-2xx response from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}
