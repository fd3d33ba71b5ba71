package generation

import (
	"time"

	"github.com/jackzampolin/reel/internal/providers"
)

// Status is the local state of a generation job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusComplete  Status = "COMPLETE"
	StatusFailed    Status = "FAILED"
	StatusTimedOut  Status = "TIMED_OUT"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// Job is one submitted generation as seen by the poller. It lives only as
// long as the request that created it.
type Job struct {
	ID       string `json:"job_id"`
	SceneID  string `json:"scene_id,omitempty"`
	Provider string `json:"provider,omitempty"`
	Status   Status `json:"status"`
	// Attempt counts status queries made so far.
	Attempt int `json:"attempt"`
	// Result is the artifact URL; set iff Status is COMPLETE.
	Result      string    `json:"result,omitempty"`
	ArtifactID  string    `json:"artifact_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewJob returns a pending job.
func NewJob(id string) *Job {
	return &Job{ID: id, Status: StatusPending, SubmittedAt: time.Now()}
}

// observe applies one provider observation and reports whether the job is
// now terminal. COMPLETE without artifacts is still pending; anything other
// than COMPLETE or FAILED is too.
func (j *Job) observe(st *providers.JobStatus) bool {
	if j.Status.Terminal() {
		return true
	}
	if st == nil {
		return false
	}
	switch st.State {
	case providers.JobComplete:
		for _, a := range st.Artifacts {
			if a.URL != "" {
				j.ArtifactID = a.ID
				j.finish(StatusComplete, a.URL)
				return true
			}
		}
	case providers.JobFailed:
		j.finish(StatusFailed, "")
		return true
	}
	return false
}

// finish moves the job to a terminal state. It is a no-op once terminal.
func (j *Job) finish(status Status, result string) {
	if j.Status.Terminal() {
		return
	}
	j.Status = status
	if status == StatusComplete {
		j.Result = result
	}
	now := time.Now()
	j.FinishedAt = &now
}

// Err maps the job's state to the error reported to callers. Pending and
// complete jobs have none.
func (j *Job) Err() error {
	switch j.Status {
	case StatusFailed:
		return ErrGenerationFailed
	case StatusTimedOut:
		return ErrGenerationTimedOut
	case StatusCancelled:
		return ErrCancelled
	}
	return nil
}
