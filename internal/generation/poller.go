package generation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackzampolin/reel/internal/providers"
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	Provider providers.ImageProvider
	Policy   Policy
	Sleeper  Sleeper // RealSleeper if nil
	Logger   *slog.Logger
	// OnUpdate, if set, receives a copy of the job after every attempt and
	// once more when it turns terminal.
	OnUpdate func(Job)
}

// Poller watches submitted jobs until they reach a terminal state.
type Poller struct {
	provider providers.ImageProvider
	sleeper  Sleeper
	logger   *slog.Logger
	onUpdate func(Job)

	mu     sync.RWMutex
	policy Policy
}

// NewPoller creates a poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Sleeper == nil {
		cfg.Sleeper = RealSleeper
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		provider: cfg.Provider,
		sleeper:  cfg.Sleeper,
		logger:   cfg.Logger,
		onUpdate: cfg.OnUpdate,
		policy:   cfg.Policy.withDefaults(),
	}
}

// Policy returns the active policy.
func (p *Poller) Policy() Policy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// SetPolicy replaces the policy for jobs watched from now on.
func (p *Poller) SetPolicy(policy Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy.withDefaults()
}

// Watch polls jobID until it completes, fails, runs out of attempts or ctx
// is cancelled. Each attempt waits first, then queries. A status query error
// counts as an unknown state and uses up the attempt.
//
// The returned job is always terminal; the error is job.Err().
func (p *Poller) Watch(ctx context.Context, jobID string) (*Job, error) {
	job := NewJob(jobID)
	job.Provider = p.provider.Name()
	return p.watch(ctx, job)
}

func (p *Poller) watch(ctx context.Context, job *Job) (*Job, error) {
	policy := p.Policy()
	logger := p.logger.With("job_id", job.ID)
	if job.SceneID != "" {
		logger = logger.With("scene_id", job.SceneID)
	}

	for job.Attempt < policy.MaxAttempts {
		if err := p.sleeper.Sleep(ctx, policy.Wait(job.Attempt)); err != nil {
			job.finish(StatusCancelled, "")
			break
		}

		job.Attempt++
		st, err := p.provider.Status(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				job.finish(StatusCancelled, "")
				break
			}
			logger.Warn("status query failed", "attempt", job.Attempt, "error", err)
			p.notify(job)
			continue
		}

		if job.observe(st) {
			break
		}
		if st == nil {
			logger.Warn("empty status response", "attempt", job.Attempt)
		} else {
			logger.Debug("job pending", "attempt", job.Attempt, "state", st.State, "artifacts", len(st.Artifacts))
		}
		p.notify(job)
	}

	if !job.Status.Terminal() {
		job.finish(StatusTimedOut, "")
	}
	p.notify(job)

	switch job.Status {
	case StatusComplete:
		logger.Info("job complete", "attempt", job.Attempt)
	case StatusCancelled:
		logger.Info("stopped watching job", "attempt", job.Attempt, "status", job.Status)
	default:
		logger.Warn("job did not succeed", "attempt", job.Attempt, "status", job.Status)
	}
	return job, job.Err()
}

func (p *Poller) notify(job *Job) {
	if p.onUpdate != nil {
		p.onUpdate(*job)
	}
}
