package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/reel/internal/prompts"
	"github.com/jackzampolin/reel/internal/providers"
	"github.com/jackzampolin/reel/internal/store"
	"github.com/jackzampolin/reel/internal/types"
)

const composedReply = `{"image_prompt":"a red fox waking at dawn","video_prompt":"fox stretches"}`

func newTestService(f *fixture, llm providers.LLMClient, images providers.ImageProvider, sleeper Sleeper) *Service {
	var composer *prompts.Composer
	if llm != nil {
		composer = prompts.NewComposer(prompts.ComposerConfig{LLM: llm})
	}
	return NewService(Config{
		Store:     f.store,
		Providers: StaticProviders{Prompts: composer, Images: images},
		Sleeper:   sleeper,
	})
}

// Scenario A: explicit override, two pending polls, then complete.
func TestGenerateImage_OverrideEndToEnd(t *testing.T) {
	f := seed(t)
	llm := providers.NewMockClient(composedReply)
	images := providers.NewMockImageProvider(providers.Pending(), providers.Pending(), providers.Complete("https://x/1.png"))
	svc := newTestService(f, llm, images, &fakeSleeper{})

	scene, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, &Overrides{Prompt: "a red fox in snow"})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if scene.ImageURL != "https://x/1.png" || scene.ImagePrompt != "a red fox in snow" {
		t.Errorf("scene = %+v", scene)
	}
	if scene.VideoPrompt != "a red fox in snow" {
		t.Errorf("video prompt = %q", scene.VideoPrompt)
	}
	if llm.RequestCount() != 0 {
		t.Error("override should not call the language model")
	}
	if images.PollCount() != 3 {
		t.Errorf("polls = %d, want 3", images.PollCount())
	}
	if f.store.updateCalls() != 1 {
		t.Errorf("updates = %d, want 1", f.store.updateCalls())
	}

	reqs := images.Requests()
	if len(reqs) != 1 || reqs[0].Prompt != "a red fox in snow" {
		t.Fatalf("requests = %+v", reqs)
	}
}

// Scenario B: malformed model reply fails before submission.
func TestGenerateImage_CompositionErrorBeforeSubmit(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Complete("u"))
	svc := newTestService(f, providers.NewMockClient("{not json"), images, &fakeSleeper{})

	_, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, nil)
	var ce *CompositionError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *CompositionError", err)
	}
	if images.SubmitCount() != 0 {
		t.Errorf("submitter invoked %d times", images.SubmitCount())
	}
	if f.store.updateCalls() != 0 {
		t.Errorf("updates = %d", f.store.updateCalls())
	}
}

// Scenario C: never terminal within the budget.
func TestGenerateImage_TimedOut(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Pending())
	svc := newTestService(f, providers.NewMockClient(composedReply), images, &fakeSleeper{})

	_, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, nil)
	if !errors.Is(err, ErrGenerationTimedOut) {
		t.Fatalf("error = %v, want ErrGenerationTimedOut", err)
	}
	if images.PollCount() != DefaultMaxAttempts {
		t.Errorf("polls = %d", images.PollCount())
	}
	if f.store.updateCalls() != 0 {
		t.Errorf("updates = %d, want 0", f.store.updateCalls())
	}
}

func TestGenerateImage_ComposedPrompts(t *testing.T) {
	f := seed(t)
	llm := providers.NewMockClient(composedReply)
	images := providers.NewMockImageProvider(providers.Complete("https://x/2.png"))
	svc := newTestService(f, llm, images, &fakeSleeper{})

	scene, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, nil)
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if scene.ImagePrompt != "a red fox waking at dawn" || scene.VideoPrompt != "fox stretches" {
		t.Errorf("scene = %+v", scene)
	}

	// The scene prompt carries the story's character and the scene's directives.
	user := llm.LastRequest().Messages[1].Content
	for _, want := range []string{"The fox wakes.", "a red fox", "bodyType: slender", "lighting: dawn"} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateImage_FailedKeepsPreviousImage(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	images := providers.NewMockImageProvider(providers.Complete("https://x/first.png"))
	svc := newTestService(f, providers.NewMockClient(composedReply), images, &fakeSleeper{})

	if _, err := svc.GenerateImage(ctx, f.scenes[0].ID, nil); err != nil {
		t.Fatal(err)
	}

	images.Steps = []providers.MockStep{providers.Pending(), providers.Failed()}
	_, err := svc.GenerateImage(ctx, f.scenes[0].ID, nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}

	scene, _ := f.store.GetScene(ctx, f.scenes[0].ID)
	if scene.ImageURL != "https://x/first.png" {
		t.Errorf("image url = %q, previous image should remain", scene.ImageURL)
	}
	if f.store.updateCalls() != 1 {
		t.Errorf("updates = %d, want 1", f.store.updateCalls())
	}
}

func TestGenerateImage_SubmissionError(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider()
	images.SubmitErr = &providers.APIError{Provider: "mock", StatusCode: 400, Body: "bad"}
	svc := newTestService(f, nil, images, &fakeSleeper{})

	_, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, &Overrides{Prompt: "p"})
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	var apiErr *providers.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Errorf("provider error not wrapped: %v", err)
	}
	if images.SubmitCount() != 1 || images.PollCount() != 0 {
		t.Errorf("submits = %d, polls = %d", images.SubmitCount(), images.PollCount())
	}
}

func TestGenerateImage_NotFound(t *testing.T) {
	f := seed(t)
	svc := newTestService(f, nil, providers.NewMockImageProvider(), &fakeSleeper{})

	_, err := svc.GenerateImage(context.Background(), "missing", &Overrides{Prompt: "p"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateImage_Cancelled(t *testing.T) {
	f := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	images := providers.NewMockImageProvider(providers.Pending())
	svc := newTestService(f, nil, images, &fakeSleeper{cancelAt: 2, cancel: cancel})

	_, err := svc.GenerateImage(ctx, f.scenes[0].ID, &Overrides{Prompt: "p"})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if f.store.updateCalls() != 0 {
		t.Errorf("updates = %d", f.store.updateCalls())
	}
}

// gateSleeper blocks the first Sleep until released.
type gateSleeper struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateSleeper() *gateSleeper {
	return &gateSleeper{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateSleeper) Sleep(ctx context.Context, d time.Duration) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func TestGenerateImage_OneInFlightPerScene(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Complete("u"))
	gate := newGateSleeper()
	svc := newTestService(f, nil, images, gate)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.GenerateImage(ctx, f.scenes[0].ID, &Overrides{Prompt: "first"})
		done <- err
	}()
	<-gate.entered

	if !svc.InProgress(f.scenes[0].ID) {
		t.Error("scene should be in progress")
	}
	if _, err := svc.GenerateImage(ctx, f.scenes[0].ID, &Overrides{Prompt: "second"}); !errors.Is(err, ErrInProgress) {
		t.Errorf("second request error = %v, want ErrInProgress", err)
	}

	// A different scene of the same story is not blocked without the throttle.
	if _, err := svc.GenerateImage(ctx, f.scenes[1].ID, &Overrides{Prompt: "other"}); err != nil {
		t.Errorf("other scene error = %v", err)
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("first request error = %v", err)
	}
	if svc.InProgress(f.scenes[0].ID) {
		t.Error("lock not released")
	}
	if images.SubmitCount() != 2 {
		t.Errorf("submits = %d, want 2", images.SubmitCount())
	}
}

func TestGenerateImage_StoryThrottle(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Complete("u"))
	gate := newGateSleeper()
	svc := NewService(Config{
		Store:         f.store,
		Providers:     StaticProviders{Images: images},
		Sleeper:       gate,
		ThrottleStory: true,
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.GenerateImage(ctx, f.scenes[0].ID, &Overrides{Prompt: "first"})
		done <- err
	}()
	<-gate.entered

	_, err := svc.GenerateImage(ctx, f.scenes[1].ID, &Overrides{Prompt: "other"})
	if !errors.Is(err, ErrStoryBusy) || !errors.Is(err, ErrInProgress) {
		t.Errorf("error = %v, want ErrStoryBusy", err)
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GenerateImage(ctx, f.scenes[1].ID, &Overrides{Prompt: "other"}); err != nil {
		t.Errorf("after release error = %v", err)
	}
}

func TestResolveSettings_Order(t *testing.T) {
	project := &types.Project{DefaultGuidanceScale: 9, DefaultNegativePrompt: "ugly"}
	story := &types.Story{Settings: types.GenerationSettings{PresetStyle: "FILM", GuidanceScale: 5}}
	scene := &types.Scene{GenerationSettings: types.GenerationSettings{PresetStyle: "ANIME", Width: 512}}
	overrides := &types.GenerationSettings{Width: 1024}

	got := ResolveSettings(overrides, scene, story, project)
	if got.Width != 1024 {
		t.Errorf("width = %d, override should win", got.Width)
	}
	if got.PresetStyle != "ANIME" {
		t.Errorf("preset = %q, scene should beat story", got.PresetStyle)
	}
	if got.GuidanceScale != 5 {
		t.Errorf("guidance = %d, story should beat project", got.GuidanceScale)
	}
	if got.NegativePrompt != "ugly" {
		t.Errorf("negative = %q, project default expected", got.NegativePrompt)
	}
	if got.ModelID != providers.DefaultModelID || got.Height != DefaultHeight {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestGenerateImage_StoresResolvedSettings(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Complete("u"))
	svc := newTestService(f, nil, images, &fakeSleeper{})

	scene, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, &Overrides{
		Prompt:   "p",
		Settings: &types.GenerationSettings{GuidanceScale: 12},
	})
	if err != nil {
		t.Fatal(err)
	}
	gs := scene.GenerationSettings
	if gs.GuidanceScale != 12 || gs.NegativePrompt != "ugly" || gs.PresetStyle != "CINEMATIC" {
		t.Errorf("stored settings = %+v", gs)
	}

	req := images.Requests()[0]
	if req.Params[ParamGuidanceScale] != 12 || req.Params["presetStyle"] != "CINEMATIC" {
		t.Errorf("submitted params = %v", req.Params)
	}
	if req.ModelID != providers.DefaultModelID {
		t.Errorf("model = %q", req.ModelID)
	}
}

func TestGenerateImage_DefaultStoryStyle(t *testing.T) {
	st := newSpyStore()
	ctx := context.Background()
	project, err := st.CreateProject(ctx, types.Project{Name: "plain"})
	if err != nil {
		t.Fatal(err)
	}
	story, err := st.CreateStory(ctx, types.Story{ProjectID: project.ID, Topic: "foxes", Platform: types.PlatformTikTok})
	if err != nil {
		t.Fatal(err)
	}
	scenes, err := st.CreateScenes(ctx, story.ID, []types.Scene{{Order: 1, Text: "The fox wakes."}})
	if err != nil {
		t.Fatal(err)
	}

	images := providers.NewMockImageProvider(providers.Complete("u"))
	svc := newTestService(&fixture{store: st}, nil, images, &fakeSleeper{})
	if _, err := svc.GenerateImage(ctx, scenes[0].ID, &Overrides{Prompt: "fox"}); err != nil {
		t.Fatal(err)
	}

	params := images.Requests()[0].Params
	if params[providers.StyleFieldPreset] != providers.DefaultPresetStyle {
		t.Errorf("presetStyle = %v", params[providers.StyleFieldPreset])
	}
	if _, ok := params[providers.StyleFieldUUID]; ok {
		t.Error("styleUUID sent for an sdxl model")
	}
}

func TestGenerateImage_TracksJob(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Pending(), providers.Complete("u"))
	svc := newTestService(f, nil, images, &fakeSleeper{})

	if _, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, &Overrides{Prompt: "p"}); err != nil {
		t.Fatal(err)
	}
	jobs := svc.Tracker().List()
	if len(jobs) != 1 {
		t.Fatalf("tracked jobs = %d", len(jobs))
	}
	job, ok := svc.Tracker().Get(jobs[0].ID)
	if !ok || job.Status != StatusComplete || job.SceneID != f.scenes[0].ID || job.Attempt != 2 {
		t.Errorf("tracked job = %+v", job)
	}
}

func TestGenerateStory(t *testing.T) {
	f := seed(t)
	llm := providers.NewMockClient(`{"scenes":[{"text":"A"},{"text":"B"},{"text":"C"},{"text":"D"}]}`)
	svc := newTestService(f, llm, nil, &fakeSleeper{})

	story, scenes, err := svc.GenerateStory(context.Background(), f.project.ID, StoryInput{Topic: "owls"})
	if err != nil {
		t.Fatalf("GenerateStory() error = %v", err)
	}
	if story.Platform != types.PlatformYouTube || story.ProjectID != f.project.ID {
		t.Errorf("story = %+v", story)
	}
	if len(scenes) != 4 {
		t.Fatalf("scenes = %d", len(scenes))
	}
	for i, sc := range scenes {
		if sc.Order != i+1 || sc.StoryID != story.ID {
			t.Errorf("scene %d = %+v", i, sc)
		}
	}
	if scenes[0].Text != "A" || scenes[3].Text != "D" {
		t.Errorf("texts out of order")
	}
}

func TestGenerateStory_Errors(t *testing.T) {
	f := seed(t)
	svc := newTestService(f, providers.NewMockClient("nope"), nil, &fakeSleeper{})

	if _, _, err := svc.GenerateStory(context.Background(), "missing", StoryInput{Topic: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing project error = %v", err)
	}
	var ce *CompositionError
	if _, _, err := svc.GenerateStory(context.Background(), f.project.ID, StoryInput{Topic: "x"}); !errors.As(err, &ce) {
		t.Errorf("bad reply error = %v", err)
	}
	stories, _ := f.store.ListStories(context.Background(), f.project.ID)
	if len(stories) != 1 {
		t.Errorf("failed draft created a story: %d stories", len(stories))
	}
}

func TestGenerateAll(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	images := providers.NewMockImageProvider(providers.Complete("https://x/all.png"))
	svc := newTestService(f, nil, images, &fakeSleeper{})

	// Scene 3 already has an image and is skipped.
	if _, err := svc.GenerateImage(ctx, f.scenes[2].ID, &Overrides{Prompt: "p"}); err != nil {
		t.Fatal(err)
	}
	// Without a language model the other two scenes fail composition.
	res, err := svc.GenerateAll(ctx, f.story.ID, false)
	if err != nil {
		t.Fatalf("GenerateAll() error = %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != f.scenes[2].ID {
		t.Errorf("skipped = %v", res.Skipped)
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestGenerateAll_Generates(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Pending(), providers.Complete("https://x/all.png"))
	svc := newTestService(f, providers.NewMockClient(composedReply), images, &fakeSleeper{})

	res, err := svc.GenerateAll(context.Background(), f.story.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Generated) != 3 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}
	for i, sc := range res.Generated {
		if sc.Order != i+1 || sc.ImageURL != "https://x/all.png" {
			t.Errorf("scene %d = %+v", i, sc)
		}
	}
	if images.SubmitCount() != 3 {
		t.Errorf("submits = %d", images.SubmitCount())
	}
}

func TestUpdateSettings_ConflictsWithInFlightGeneration(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Complete("u"))
	gate := newGateSleeper()
	svc := newTestService(f, nil, images, gate)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.GenerateImage(ctx, f.scenes[0].ID, &Overrides{Prompt: "p"})
		done <- err
	}()
	<-gate.entered

	if _, err := svc.UpdateSettings(ctx, f.scenes[0].ID, SettingsUpdate{Directives: map[string]string{"emotion": "joy"}}); err != nil {
		t.Fatal(err)
	}
	close(gate.release)

	if err := <-done; !errors.Is(err, ErrConflict) {
		t.Fatalf("generation error = %v, want ErrConflict", err)
	}
	scene, _ := f.store.GetScene(ctx, f.scenes[0].ID)
	if scene.ImageURL != "" || scene.Directives["emotion"] != "joy" {
		t.Errorf("scene = %+v", scene)
	}
}

func TestUpdateSettings_MergesPartialEdit(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	stored := types.GenerationSettings{
		ModelID:        "de7d3faf-762f-48e0-b3b7-9d0ac3a3fcf3",
		PresetStyle:    "ANIME",
		NegativePrompt: "blurry",
		Elements:       []types.Element{{ID: "el-1", Weight: 0.5}},
	}
	if _, err := f.store.UpdateScene(ctx, f.scenes[0].ID, store.ScenePatch{GenerationSettings: &stored}, ""); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(f, nil, nil, &fakeSleeper{})

	scene, err := svc.UpdateSettings(ctx, f.scenes[0].ID, SettingsUpdate{
		Settings:   &types.GenerationSettings{GuidanceScale: 9},
		Directives: map[string]string{"emotion": "joy", "lighting": ""},
	})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	gs := scene.GenerationSettings
	if gs.GuidanceScale != 9 {
		t.Errorf("guidance = %d, want 9", gs.GuidanceScale)
	}
	if gs.ModelID != stored.ModelID || gs.PresetStyle != "ANIME" || gs.NegativePrompt != "blurry" || len(gs.Elements) != 1 {
		t.Errorf("stored settings lost: %+v", gs)
	}
	if scene.Directives["emotion"] != "joy" {
		t.Errorf("directives = %v", scene.Directives)
	}
	if _, ok := scene.Directives["lighting"]; ok {
		t.Error("empty directive should be removed")
	}
}

func TestUpdateSettings_StaleVersion(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	svc := newTestService(f, nil, nil, &fakeSleeper{})

	if _, err := svc.UpdateSettings(ctx, f.scenes[0].ID, SettingsUpdate{Settings: &types.GenerationSettings{Width: 512}}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.UpdateSettings(ctx, f.scenes[0].ID, SettingsUpdate{
		Settings: &types.GenerationSettings{Width: 640},
		Version:  f.scenes[0].Version,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestReconfigure(t *testing.T) {
	f := seed(t)
	images := providers.NewMockImageProvider(providers.Pending())
	svc := newTestService(f, nil, images, &fakeSleeper{})
	svc.Reconfigure(Policy{MaxAttempts: 3}, false, 0)

	_, err := svc.GenerateImage(context.Background(), f.scenes[0].ID, &Overrides{Prompt: "p"})
	if !errors.Is(err, ErrGenerationTimedOut) {
		t.Fatalf("error = %v", err)
	}
	if images.PollCount() != 3 {
		t.Errorf("polls = %d, want 3", images.PollCount())
	}
}
