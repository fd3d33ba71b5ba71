package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	MockClientName = "mock"
	MockImageName  = "mock-image"
)

// MockClient is an LLMClient for testing. Responses are returned in order;
// once they run out the last one repeats.
type MockClient struct {
	Responses []string
	Err       error

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a mock client that answers every request with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{Responses: []string{response}}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat records the request and returns the next scripted response.
// Structured requests are decoded and validated like the real client does.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	c.mu.Lock()
	n := len(c.requests)
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.Responses) == 0 {
		return nil, errors.New("mock client has no responses")
	}

	content := c.Responses[min(n, len(c.Responses)-1)]
	result := &ChatResult{
		Content:   content,
		Provider:  MockClientName,
		ModelUsed: req.Model,
		RequestID: fmt.Sprintf("mock-%d", n+1),
	}
	if req.ResponseFormat != nil {
		parsed, err := DecodeStructured(content, req.ResponseFormat)
		if err != nil {
			return result, fmt.Errorf("structured output: %w", err)
		}
		result.ParsedJSON = parsed
	}
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

var _ LLMClient = (*MockClient)(nil)

// MockStep is one scripted Status answer.
type MockStep struct {
	Status *JobStatus
	Err    error
}

// MockImageProvider is an ImageProvider for testing. Every submitted job
// walks through Steps in order; after the last step it keeps repeating it.
type MockImageProvider struct {
	Steps     []MockStep
	SubmitErr error
	// Block, if set, holds Submit until it is closed or ctx ends.
	Block chan struct{}

	submits atomic.Int64
	polls   atomic.Int64

	mu       sync.Mutex
	requests []*ImageRequest
	progress map[string]int
}

// NewMockImageProvider returns a provider whose jobs report the given steps.
func NewMockImageProvider(steps ...MockStep) *MockImageProvider {
	return &MockImageProvider{Steps: steps}
}

// Pending is a scripted PENDING observation.
func Pending() MockStep {
	return MockStep{Status: &JobStatus{State: JobPending}}
}

// Complete is a scripted COMPLETE observation with one artifact per URL.
func Complete(urls ...string) MockStep {
	st := &JobStatus{State: JobComplete}
	for i, u := range urls {
		st.Artifacts = append(st.Artifacts, Artifact{ID: fmt.Sprintf("img-%d", i), URL: u})
	}
	return MockStep{Status: st}
}

// Failed is a scripted FAILED observation.
func Failed() MockStep {
	return MockStep{Status: &JobStatus{State: JobFailed}}
}

// Name returns the provider identifier.
func (p *MockImageProvider) Name() string {
	return MockImageName
}

// Submit records the request and returns a fresh job ID.
func (p *MockImageProvider) Submit(ctx context.Context, req *ImageRequest) (string, error) {
	p.submits.Add(1)
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.SubmitErr != nil {
		return "", p.SubmitErr
	}
	return "job-" + uuid.NewString(), nil
}

// Status returns the next scripted step for the job.
func (p *MockImageProvider) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	p.polls.Add(1)
	if len(p.Steps) == 0 {
		return &JobStatus{State: JobPending}, nil
	}

	p.mu.Lock()
	if p.progress == nil {
		p.progress = make(map[string]int)
	}
	i := p.progress[jobID]
	p.progress[jobID] = i + 1
	p.mu.Unlock()

	step := p.Steps[min(i, len(p.Steps)-1)]
	return step.Status, step.Err
}

// SubmitCount returns the number of Submit calls.
func (p *MockImageProvider) SubmitCount() int {
	return int(p.submits.Load())
}

// PollCount returns the number of Status calls.
func (p *MockImageProvider) PollCount() int {
	return int(p.polls.Load())
}

// Requests returns the submitted requests.
func (p *MockImageProvider) Requests() []*ImageRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*ImageRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

var _ ImageProvider = (*MockImageProvider)(nil)
