// Package generation turns a scene into an image: resolve prompts, submit a
// job to the image provider, watch it to a terminal state and merge the
// result into the stored scene.
//
// A request runs synchronously on the caller's goroutine. At most one job is
// in flight per scene; an optional story-wide throttle narrows that to one
// per story.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/reel/internal/prompts"
	"github.com/jackzampolin/reel/internal/providers"
	"github.com/jackzampolin/reel/internal/store"
	"github.com/jackzampolin/reel/internal/types"
)

// DefaultBatchConcurrency bounds GenerateAll.
const DefaultBatchConcurrency = 3

// Providers resolves the collaborators for one request, so a config reload
// takes effect on the next request.
type Providers interface {
	Composer() (*prompts.Composer, error)
	ImageProvider() (providers.ImageProvider, error)
}

// StaticProviders is a fixed Providers.
type StaticProviders struct {
	Prompts *prompts.Composer
	Images  providers.ImageProvider
}

func (p StaticProviders) Composer() (*prompts.Composer, error) {
	if p.Prompts == nil {
		return nil, fmt.Errorf("no language model configured")
	}
	return p.Prompts, nil
}

func (p StaticProviders) ImageProvider() (providers.ImageProvider, error) {
	if p.Images == nil {
		return nil, fmt.Errorf("no image provider configured")
	}
	return p.Images, nil
}

// Config configures a Service.
type Config struct {
	Store     store.Store
	Providers Providers
	Policy    Policy
	Sleeper   Sleeper  // RealSleeper if nil
	Tracker   *Tracker // Created if nil
	// ThrottleStory allows only one generating scene per story.
	ThrottleStory bool
	// BatchConcurrency bounds GenerateAll (DefaultBatchConcurrency if zero).
	BatchConcurrency int
	Logger           *slog.Logger
}

// Overrides are the per-request inputs to GenerateImage.
type Overrides struct {
	// Prompt, if set, is used verbatim as the image prompt.
	Prompt string `json:"prompt,omitempty"`
	// Settings take precedence over every stored settings layer.
	Settings *types.GenerationSettings `json:"settings,omitempty"`
}

// Service runs generations.
type Service struct {
	store      store.Store
	providers  Providers
	sleeper    Sleeper
	tracker    *Tracker
	reconciler *Reconciler
	logger     *slog.Logger

	scenes  *keyLock
	stories *keyLock

	mu            sync.RWMutex
	policy        Policy
	throttleStory bool
	batchLimit    int
}

// NewService creates a generation service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = RealSleeper
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker(0)
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	return &Service{
		store:         cfg.Store,
		providers:     cfg.Providers,
		sleeper:       cfg.Sleeper,
		tracker:       cfg.Tracker,
		reconciler:    NewReconciler(cfg.Store, logger),
		logger:        logger,
		scenes:        newKeyLock(),
		stories:       newKeyLock(),
		policy:        cfg.Policy.withDefaults(),
		throttleStory: cfg.ThrottleStory,
		batchLimit:    cfg.BatchConcurrency,
	}
}

// Tracker returns the job tracker.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// Policy returns the active polling policy.
func (s *Service) Policy() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Reconfigure applies reloaded settings to requests started afterwards.
func (s *Service) Reconfigure(policy Policy, throttleStory bool, batchConcurrency int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = policy.withDefaults()
	s.throttleStory = throttleStory
	if batchConcurrency > 0 {
		s.batchLimit = batchConcurrency
	}
}

func (s *Service) settings() (Policy, bool, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy, s.throttleStory, s.batchLimit
}

// InProgress reports whether sceneID has a generation in flight.
func (s *Service) InProgress(sceneID string) bool {
	return s.scenes.isHeld(sceneID)
}

// ResolveSettings layers overrides over the scene's last settings, the
// story's settings and the project defaults, in that order.
func ResolveSettings(overrides *types.GenerationSettings, scene *types.Scene, story *types.Story, project *types.Project) types.GenerationSettings {
	var out types.GenerationSettings
	if overrides != nil {
		out = *overrides
	}
	if scene != nil {
		out = out.Merge(scene.GenerationSettings)
	}
	if story != nil {
		out = out.Merge(story.Settings)
	}
	if project != nil {
		out = out.Merge(project.ProjectDefaults())
	}
	if out.ModelID == "" {
		out.ModelID = providers.DefaultModelID
	}
	if out.Width == 0 {
		out.Width = DefaultWidth
	}
	if out.Height == 0 {
		out.Height = DefaultHeight
	}
	return out
}

// GenerateImage produces a new image for a scene and returns the updated
// scene. It blocks until the job is terminal, the policy's budget runs out
// or ctx is cancelled. On any failure the stored scene is left unchanged.
func (s *Service) GenerateImage(ctx context.Context, sceneID string, overrides *Overrides) (*types.Scene, error) {
	if overrides == nil {
		overrides = &Overrides{}
	}
	policy, throttle, _ := s.settings()
	logger := s.logger.With("scene_id", sceneID)

	release, ok := s.scenes.tryLock(sceneID)
	if !ok {
		return nil, ErrInProgress
	}
	defer release()

	scene, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	story, err := s.store.GetStory(ctx, scene.StoryID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, story.ProjectID)
	if err != nil {
		return nil, err
	}

	if throttle {
		releaseStory, ok := s.stories.tryLock(story.ID)
		if !ok {
			return nil, ErrStoryBusy
		}
		defer releaseStory()
	}

	settings := ResolveSettings(overrides.Settings, scene, story, project)

	composer, err := s.composer(overrides.Prompt)
	if err != nil {
		return nil, &CompositionError{Op: "scene", Err: err}
	}
	composition, err := composer.Compose(ctx, prompts.SceneInput{
		Text:              scene.Text,
		Character:         story.Character,
		CharacterTemplate: story.CharacterTemplate,
		Directives:        scene.Directives,
	}, overrides.Prompt, scene.VideoPrompt)
	if err != nil {
		return nil, err
	}

	images, err := s.providers.ImageProvider()
	if err != nil {
		return nil, &SubmissionError{Provider: "none", Err: err}
	}
	jobID, err := NewSubmitter(images, logger).Submit(ctx, composition.ImagePrompt,
		settings.ModelID, settings.Width, settings.Height, BuildParams(settings))
	if err != nil {
		return nil, err
	}

	job := NewJob(jobID)
	job.SceneID = scene.ID
	job.Provider = images.Name()
	s.tracker.Update(*job)

	poller := NewPoller(PollerConfig{
		Provider: images,
		Policy:   policy,
		Sleeper:  s.sleeper,
		Logger:   s.logger,
		OnUpdate: s.tracker.Update,
	})
	job, _ = poller.watch(ctx, job)

	return s.reconciler.Apply(ctx, scene.ID, scene.Version, Outcome{
		Job:         job,
		ImagePrompt: composition.ImagePrompt,
		VideoPrompt: composition.VideoPrompt,
		Settings:    settings,
	})
}

// composer returns the composer, or a model-less one when an override
// prompt means no model call will be made.
func (s *Service) composer(override string) (*prompts.Composer, error) {
	c, err := s.providers.Composer()
	if err == nil {
		return c, nil
	}
	if override != "" {
		return prompts.NewComposer(prompts.ComposerConfig{Logger: s.logger}), nil
	}
	return nil, err
}

// StoryInput is a request to draft a new story in a project.
type StoryInput struct {
	Topic             string                   `json:"topic"`
	Platform          types.Platform           `json:"platform"`
	Character         string                   `json:"character,omitempty"`
	CharacterTemplate map[string]string        `json:"character_template,omitempty"`
	Settings          types.GenerationSettings `json:"settings,omitempty"`
}

// GenerateStory drafts a story with the language model and stores it with
// its scenes in order.
func (s *Service) GenerateStory(ctx context.Context, projectID string, in StoryInput) (*types.Story, []types.Scene, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, nil, err
	}
	if in.Platform == "" {
		in.Platform = types.PlatformYouTube
	}

	composer, err := s.providers.Composer()
	if err != nil {
		return nil, nil, &CompositionError{Op: "story", Err: err}
	}
	texts, err := composer.DraftStory(ctx, prompts.StoryRequest{
		Topic:     in.Topic,
		Platform:  in.Platform,
		Character: in.Character,
	})
	if err != nil {
		return nil, nil, err
	}

	story, err := s.store.CreateStory(ctx, types.Story{
		ProjectID:         projectID,
		Topic:             in.Topic,
		Platform:          in.Platform,
		Character:         in.Character,
		CharacterTemplate: in.CharacterTemplate,
		Settings:          in.Settings,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create story: %w", err)
	}

	scenes := make([]types.Scene, len(texts))
	for i, text := range texts {
		scenes[i] = types.Scene{ProjectID: projectID, StoryID: story.ID, Order: i + 1, Text: text}
	}
	created, err := s.store.CreateScenes(ctx, story.ID, scenes)
	if err != nil {
		return nil, nil, fmt.Errorf("create scenes: %w", err)
	}

	s.logger.Info("story created", "project_id", projectID, "story_id", story.ID, "scenes", len(created))
	return story, created, nil
}

// BatchResult reports a GenerateAll run.
type BatchResult struct {
	Generated []types.Scene     `json:"generated"`
	Skipped   []string          `json:"skipped,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// GenerateAll generates every scene of a story, or only those without an
// image unless force is set. Scenes run concurrently up to the batch limit,
// or one at a time when the story throttle is on. A failed scene does not
// stop the others.
func (s *Service) GenerateAll(ctx context.Context, storyID string, force bool) (*BatchResult, error) {
	if _, err := s.store.GetStory(ctx, storyID); err != nil {
		return nil, err
	}
	scenes, err := s.store.ListScenes(ctx, storyID)
	if err != nil {
		return nil, err
	}

	_, throttle, limit := s.settings()
	if throttle {
		limit = 1
	}

	result := &BatchResult{Errors: make(map[string]string)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, scene := range scenes {
		if scene.HasImage() && !force {
			result.Skipped = append(result.Skipped, scene.ID)
			continue
		}
		sceneID := scene.ID
		g.Go(func() error {
			updated, err := s.GenerateImage(gctx, sceneID, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[sceneID] = err.Error()
				return nil
			}
			result.Generated = append(result.Generated, *updated)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Generated, func(i, j int) bool { return result.Generated[i].Order < result.Generated[j].Order })
	s.logger.Info("batch generation finished", "story_id", storyID,
		"generated", len(result.Generated), "failed", len(result.Errors), "skipped", len(result.Skipped))
	return result, ctx.Err()
}

// SettingsUpdate is a direct edit of a scene's generation inputs.
type SettingsUpdate struct {
	Settings   *types.GenerationSettings `json:"settings,omitempty"`
	Directives map[string]string         `json:"directives,omitempty"`
	// Version, if set, makes the edit conditional.
	Version string `json:"version,omitempty"`
}

// UpdateSettings edits a scene's stored settings or directives. Set fields
// are merged over the stored ones; a directive with an empty value is
// removed. The write is conditional on the version that was read, or on
// upd.Version when given. An edit that lands while a generation is in
// flight makes that generation's write fail with ErrConflict instead of
// silently undoing the edit.
func (s *Service) UpdateSettings(ctx context.Context, sceneID string, upd SettingsUpdate) (*types.Scene, error) {
	scene, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if upd.Settings == nil && upd.Directives == nil {
		return scene, nil
	}

	var patch store.ScenePatch
	if upd.Settings != nil {
		merged := upd.Settings.Merge(scene.GenerationSettings)
		patch.GenerationSettings = &merged
	}
	if upd.Directives != nil {
		patch.Directives = mergeDirectives(scene.Directives, upd.Directives)
	}

	version := upd.Version
	if version == "" {
		version = scene.Version
	}
	return s.store.UpdateScene(ctx, sceneID, patch, version)
}

func mergeDirectives(current, edits map[string]string) map[string]string {
	out := make(map[string]string, len(current)+len(edits))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range edits {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
