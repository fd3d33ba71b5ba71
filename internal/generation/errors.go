package generation

import (
	"errors"
	"fmt"

	"github.com/jackzampolin/reel/internal/prompts"
	"github.com/jackzampolin/reel/internal/store"
)

var (
	// ErrGenerationUnsuccessful is the class of "the job ran but produced no
	// image". Both FAILED and TIMED_OUT wrap it.
	ErrGenerationUnsuccessful = errors.New("generation did not succeed")

	// ErrGenerationFailed means the provider reported an explicit failure.
	ErrGenerationFailed = fmt.Errorf("%w: provider reported failure", ErrGenerationUnsuccessful)

	// ErrGenerationTimedOut means the attempt budget ran out while pending.
	ErrGenerationTimedOut = fmt.Errorf("%w: timed out waiting for provider", ErrGenerationUnsuccessful)

	// ErrCancelled means the local polling loop was stopped by the caller.
	// The remote job may still finish; its result is discarded.
	ErrCancelled = errors.New("generation cancelled")

	// ErrInProgress is returned when the scene already has a job in flight.
	ErrInProgress = errors.New("generation already in progress")

	// ErrStoryBusy is returned by the story throttle when another scene of
	// the same story is generating.
	ErrStoryBusy = fmt.Errorf("%w: another scene of this story is generating", ErrInProgress)

	// Re-exported store errors so callers only import this package.
	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrConflict
)

// CompositionError reports that prompt synthesis failed.
type CompositionError = prompts.CompositionError

// SubmissionError reports that the provider did not accept a job.
type SubmissionError struct {
	Provider string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit to %s: %v", e.Provider, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
