package generation

import (
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	trackerExpiration = 30 * time.Minute
	trackerCleanup    = time.Hour
)

// Tracker remembers recent jobs for status queries. Entries expire on
// their own; nothing here survives a restart.
type Tracker struct {
	jobs *cache.Cache
}

// NewTracker creates a tracker whose entries live for ttl (30m if zero).
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = trackerExpiration
	}
	return &Tracker{jobs: cache.New(ttl, trackerCleanup)}
}

// Update records the latest view of a job.
func (t *Tracker) Update(job Job) {
	t.jobs.SetDefault(job.ID, job)
}

// Get returns the last recorded view of jobID.
func (t *Tracker) Get(jobID string) (Job, bool) {
	v, ok := t.jobs.Get(jobID)
	if !ok {
		return Job{}, false
	}
	return v.(Job), true
}

// List returns tracked jobs, newest first.
func (t *Tracker) List() []Job {
	items := t.jobs.Items()
	out := make([]Job, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}
