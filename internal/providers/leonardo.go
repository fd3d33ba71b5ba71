package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	LeonardoName           = "leonardo"
	leonardoDefaultBaseURL = "https://cloud.leonardo.ai/api/rest/v1"

	leonardoDefaultRateLimit = 2.0
)

// LeonardoConfig holds configuration for the Leonardo.ai client.
type LeonardoConfig struct {
	APIKey     string
	BaseURL    string        // Optional (tests)
	RateLimit  float64       // Requests per second, shared by Submit and Status
	Timeout    time.Duration // HTTP timeout per request
	HTTPClient *http.Client  // Optional (tests)
}

// LeonardoClient implements ImageProvider against the Leonardo.ai REST API.
// It never retries: a failed submission is reported to the caller and status
// polling is budgeted by the poller.
type LeonardoClient struct {
	apiKey     string
	baseURL    string
	rateLimit  float64
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewLeonardoClient creates a new Leonardo client.
func NewLeonardoClient(cfg LeonardoConfig) *LeonardoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = leonardoDefaultBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = leonardoDefaultRateLimit
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &LeonardoClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		rateLimit:  cfg.RateLimit,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 2),
		httpClient: httpClient,
	}
}

// Name returns the provider identifier.
func (c *LeonardoClient) Name() string {
	return LeonardoName
}

type leonardoSubmitResponse struct {
	SDGenerationJob struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type leonardoStatusResponse struct {
	GenerationsByPK *struct {
		Status          string `json:"status"`
		GeneratedImages []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

// Submit posts a generation request for a single image.
func (c *LeonardoClient) Submit(ctx context.Context, req *ImageRequest) (string, error) {
	body := make(map[string]any, len(req.Params)+5)
	for k, v := range req.Params {
		body[k] = v
	}
	body["prompt"] = req.Prompt
	body["modelId"] = req.ModelID
	body["width"] = req.Width
	body["height"] = req.Height
	body["num_images"] = 1

	var resp leonardoSubmitResponse
	if err := c.do(ctx, http.MethodPost, "/generations", body, &resp); err != nil {
		return "", err
	}
	if resp.SDGenerationJob.GenerationID == "" {
		return "", fmt.Errorf("leonardo: response carried no generationId")
	}
	return resp.SDGenerationJob.GenerationID, nil
}

// Status fetches the current state of a generation.
func (c *LeonardoClient) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	var resp leonardoStatusResponse
	if err := c.do(ctx, http.MethodGet, "/generations/"+jobID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.GenerationsByPK == nil {
		return nil, fmt.Errorf("leonardo: generation %s not found in response", jobID)
	}

	status := &JobStatus{State: JobState(resp.GenerationsByPK.Status)}
	for _, img := range resp.GenerationsByPK.GeneratedImages {
		if img.URL == "" {
			continue
		}
		status.Artifacts = append(status.Artifacts, Artifact{ID: img.ID, URL: img.URL})
	}
	return status, nil
}

func (c *LeonardoClient) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Provider: LeonardoName, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

var _ ImageProvider = (*LeonardoClient)(nil)
