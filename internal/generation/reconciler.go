package generation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackzampolin/reel/internal/store"
	"github.com/jackzampolin/reel/internal/types"
)

// Outcome is a terminal job plus what was sent to produce it.
type Outcome struct {
	Job         *Job
	ImagePrompt string
	VideoPrompt string
	Settings    types.GenerationSettings
}

// SceneUpdater is the part of the store the reconciler writes through.
type SceneUpdater interface {
	UpdateScene(ctx context.Context, id string, patch store.ScenePatch, ifVersion string) (*types.Scene, error)
}

// Reconciler merges finished jobs into their scenes.
type Reconciler struct {
	scenes SceneUpdater
	logger *slog.Logger
}

// NewReconciler creates a reconciler writing to scenes.
func NewReconciler(scenes SceneUpdater, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{scenes: scenes, logger: logger}
}

// Apply writes a COMPLETE outcome to the scene in one conditional update
// and returns the merged scene. Any other outcome writes nothing and returns
// the job's error, so the scene keeps its previous image.
func (r *Reconciler) Apply(ctx context.Context, sceneID, version string, out Outcome) (*types.Scene, error) {
	if out.Job == nil {
		return nil, errors.New("reconcile: no job")
	}
	if out.Job.Status != StatusComplete {
		if err := out.Job.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("reconcile: job is not terminal")
	}

	url := out.Job.Result
	imagePrompt := out.ImagePrompt
	videoPrompt := out.VideoPrompt
	settings := out.Settings

	scene, err := r.scenes.UpdateScene(ctx, sceneID, store.ScenePatch{
		ImageURL:           &url,
		ImagePrompt:        &imagePrompt,
		VideoPrompt:        &videoPrompt,
		GenerationSettings: &settings,
	}, version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			r.logger.Warn("scene changed during generation, result discarded",
				"scene_id", sceneID, "job_id", out.Job.ID)
		}
		return nil, err
	}

	r.logger.Info("scene image updated", "scene_id", sceneID, "job_id", out.Job.ID, "version", scene.Version)
	return scene, nil
}
