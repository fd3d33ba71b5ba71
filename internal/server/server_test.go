package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackzampolin/reel/internal/generation"
	"github.com/jackzampolin/reel/internal/prompts"
	"github.com/jackzampolin/reel/internal/providers"
	"github.com/jackzampolin/reel/internal/server/endpoints"
	"github.com/jackzampolin/reel/internal/types"
)

const (
	storyReply = `{"scenes":[{"text":"The fox wakes."},{"text":"The fox hunts."}]}`
	sceneReply = `{"image_prompt":"a red fox at dawn","video_prompt":"the fox stretches"}`
)

var instant = generation.SleeperFunc(func(ctx context.Context, d time.Duration) error {
	return ctx.Err()
})

func newTestServer(t *testing.T, llm providers.LLMClient, images providers.ImageProvider) *httptest.Server {
	t.Helper()
	var composer *prompts.Composer
	if llm != nil {
		composer = prompts.NewComposer(prompts.ComposerConfig{LLM: llm})
	}
	srv, err := New(Config{
		Memory:    true,
		Providers: generation.StaticProviders{Prompts: composer, Images: images},
		Sleeper:   instant,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.init(context.Background()); err != nil {
		t.Fatalf("init() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

// seedStory creates a project and a two-scene story through the API.
func seedStory(t *testing.T, base string) endpoints.StoryResponse {
	t.Helper()
	var project types.Project
	if code := do(t, "POST", base+"/api/projects", map[string]any{"name": "demo"}, &project); code != http.StatusCreated {
		t.Fatalf("create project: status %d", code)
	}
	var story endpoints.StoryResponse
	code := do(t, "POST", base+"/api/projects/"+project.ID+"/story",
		generation.StoryInput{Topic: "foxes", Platform: types.PlatformTikTok, Character: "a red fox"}, &story)
	if code != http.StatusCreated {
		t.Fatalf("generate story: status %d", code)
	}
	if len(story.Scenes) != 2 {
		t.Fatalf("scenes = %d, want 2", len(story.Scenes))
	}
	return story
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_RequiresInit(t *testing.T) {
	srv, err := New(Config{Memory: true})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/ready", http.StatusServiceUnavailable},
		{"/api/models", http.StatusOK},
		{"/api/projects", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if code := do(t, "GET", ts.URL+tt.path, nil, nil); code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, code, tt.want)
		}
	}
}

func TestServer_StoryboardFlow(t *testing.T) {
	imgs := imageServer(t)
	llm := &providers.MockClient{Responses: []string{storyReply, sceneReply}}
	images := providers.NewMockImageProvider(providers.Pending(), providers.Complete(imgs.URL+"/1.png"))
	ts := newTestServer(t, llm, images)

	story := seedStory(t, ts.URL)

	if code := do(t, "GET", ts.URL+"/ready", nil, nil); code != http.StatusOK {
		t.Errorf("ready = %d", code)
	}

	var scene types.Scene
	code := do(t, "POST", ts.URL+"/api/scenes/"+story.Scenes[0].ID+"/generate-image", nil, &scene)
	if code != http.StatusOK {
		t.Fatalf("generate-image = %d", code)
	}
	if scene.ImageURL != imgs.URL+"/1.png" || scene.ImagePrompt != "a red fox at dawn" {
		t.Errorf("scene = %+v", scene)
	}

	var listed endpoints.ListScenesResponse
	do(t, "GET", ts.URL+"/api/stories/"+story.Story.ID+"/scenes", nil, &listed)
	if len(listed.Scenes) != 2 || listed.Scenes[0].ImageURL == "" || listed.Scenes[1].ImageURL != "" {
		t.Errorf("scenes = %+v", listed.Scenes)
	}

	var jobs endpoints.ListGenerationsResponse
	do(t, "GET", ts.URL+"/api/generations", nil, &jobs)
	if len(jobs.Generations) != 1 {
		t.Fatalf("generations = %d, want 1", len(jobs.Generations))
	}
	var job generation.Job
	if code := do(t, "GET", ts.URL+"/api/generations/"+jobs.Generations[0].ID, nil, &job); code != http.StatusOK {
		t.Fatalf("get generation = %d", code)
	}
	if job.Status != generation.StatusComplete || job.SceneID != scene.ID {
		t.Errorf("job = %+v", job)
	}

	resp, err := http.Get(ts.URL + "/api/stories/" + story.Story.ID + "/storyboard.pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	pdf, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("storyboard: status %d, %d bytes", resp.StatusCode, len(pdf))
	}
}

func TestServer_GenerateImageErrors(t *testing.T) {
	tests := []struct {
		name     string
		llm      providers.LLMClient
		images   *providers.MockImageProvider
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "provider failure",
			llm:      &providers.MockClient{Responses: []string{storyReply, sceneReply}},
			images:   providers.NewMockImageProvider(providers.Pending(), providers.Failed()),
			wantCode: http.StatusFailedDependency,
			wantErr:  "generation_failed",
		},
		{
			name:     "timeout",
			llm:      &providers.MockClient{Responses: []string{storyReply, sceneReply}},
			images:   providers.NewMockImageProvider(providers.Complete()),
			wantCode: http.StatusGatewayTimeout,
			wantErr:  "timed_out",
		},
		{
			name:     "submission",
			llm:      &providers.MockClient{Responses: []string{storyReply, sceneReply}},
			images:   &providers.MockImageProvider{SubmitErr: errors.New("402 payment required")},
			wantCode: http.StatusBadGateway,
			wantErr:  "submission_failed",
		},
		{
			name:     "composition",
			llm:      &providers.MockClient{Responses: []string{storyReply, "{not json"}},
			images:   providers.NewMockImageProvider(providers.Complete("u")),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "composition_failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.llm, tt.images)
			story := seedStory(t, ts.URL)
			before := story.Scenes[0]

			var resp endpoints.ErrorResponse
			code := do(t, "POST", ts.URL+"/api/scenes/"+before.ID+"/generate-image", tt.body, &resp)
			if code != tt.wantCode || resp.Code != tt.wantErr {
				t.Fatalf("status = %d (%s), want %d (%s)", code, resp.Code, tt.wantCode, tt.wantErr)
			}

			var after types.Scene
			do(t, "GET", ts.URL+"/api/scenes/"+before.ID, nil, &after)
			if after.Version != before.Version || after.ImageURL != "" {
				t.Errorf("scene changed after failed generation: %+v", after)
			}
		})
	}
}

func TestServer_NotFound(t *testing.T) {
	ts := newTestServer(t, providers.NewMockClient(sceneReply), providers.NewMockImageProvider())
	for _, path := range []string{"/api/projects/missing", "/api/scenes/missing", "/api/stories/missing/scenes", "/api/generations/missing"} {
		if code := do(t, "GET", ts.URL+path, nil, nil); code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, code)
		}
	}
	if code := do(t, "POST", ts.URL+"/api/scenes/missing/generate-image", nil, nil); code != http.StatusNotFound {
		t.Errorf("generate missing scene = %d, want 404", code)
	}
}

func TestServer_GenerateImageInProgress(t *testing.T) {
	images := providers.NewMockImageProvider(providers.Complete("https://x/1.png"))
	images.Block = make(chan struct{})
	ts := newTestServer(t, &providers.MockClient{Responses: []string{storyReply, sceneReply}}, images)
	story := seedStory(t, ts.URL)
	sceneID := story.Scenes[0].ID

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/api/scenes/"+sceneID+"/generate-image", "application/json",
			bytes.NewReader([]byte(`{"prompt":"fox"}`)))
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	deadline := time.Now().Add(5 * time.Second)
	for images.SubmitCount() == 0 {
		if time.Now().After(deadline) {
			close(images.Block)
			t.Fatal("first generation never reached the provider")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var sc endpoints.SceneResponse
	do(t, "GET", ts.URL+"/api/scenes/"+sceneID, nil, &sc)
	if !sc.Generating {
		t.Error("scene should report generating")
	}

	var resp endpoints.ErrorResponse
	if code := do(t, "POST", ts.URL+"/api/scenes/"+sceneID+"/generate-image", generation.Overrides{Prompt: "fox"}, &resp); code != http.StatusConflict {
		t.Errorf("second request = %d, want 409", code)
	}
	if resp.Code != "in_progress" {
		t.Errorf("code = %q", resp.Code)
	}

	close(images.Block)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first request = %d, want 200", code)
	}
}

func TestServer_SettingsConflict(t *testing.T) {
	ts := newTestServer(t, &providers.MockClient{Responses: []string{storyReply}}, providers.NewMockImageProvider())
	story := seedStory(t, ts.URL)
	scene := story.Scenes[0]

	upd := generation.SettingsUpdate{Directives: map[string]string{"lighting": "dusk"}, Version: scene.Version}
	var updated types.Scene
	if code := do(t, "PATCH", ts.URL+"/api/scenes/"+scene.ID+"/settings", upd, &updated); code != http.StatusOK {
		t.Fatalf("first update = %d", code)
	}
	if updated.Directives["lighting"] != "dusk" {
		t.Errorf("directives = %v", updated.Directives)
	}

	if code := do(t, "PATCH", ts.URL+"/api/scenes/"+scene.ID+"/settings", upd, nil); code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", code)
	}
}

func TestServer_ProjectCRUD(t *testing.T) {
	ts := newTestServer(t, &providers.MockClient{Responses: []string{storyReply}}, providers.NewMockImageProvider())

	if code := do(t, "POST", ts.URL+"/api/projects", map[string]any{}, nil); code != http.StatusBadRequest {
		t.Errorf("create without name = %d, want 400", code)
	}

	story := seedStory(t, ts.URL)
	projectID := story.Story.ProjectID

	var project types.Project
	code := do(t, "PATCH", ts.URL+"/api/projects/"+projectID, map[string]any{"default_guidance_scale": 12}, &project)
	if code != http.StatusOK || project.DefaultGuidanceScale != 12 || project.Name != "demo" {
		t.Errorf("update = %d, %+v", code, project)
	}

	var stories endpoints.ListStoriesResponse
	do(t, "GET", ts.URL+"/api/projects/"+projectID+"/stories", nil, &stories)
	if len(stories.Stories) != 1 {
		t.Errorf("stories = %d, want 1", len(stories.Stories))
	}

	if code := do(t, "DELETE", ts.URL+"/api/projects/"+projectID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete = %d", code)
	}
	if code := do(t, "GET", ts.URL+"/api/scenes/"+story.Scenes[0].ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("scene after project delete = %d, want 404", code)
	}
}

func TestServer_BatchGenerate(t *testing.T) {
	llm := &providers.MockClient{Responses: []string{storyReply, sceneReply}}
	images := providers.NewMockImageProvider(providers.Complete("https://x/img.png"))
	ts := newTestServer(t, llm, images)
	story := seedStory(t, ts.URL)

	var result generation.BatchResult
	if code := do(t, "POST", ts.URL+"/api/stories/"+story.Story.ID+"/generate-images", nil, &result); code != http.StatusOK {
		t.Fatalf("batch = %d", code)
	}
	if len(result.Generated) != 2 || len(result.Errors) != 0 {
		t.Errorf("result = %+v", result)
	}

	result = generation.BatchResult{}
	do(t, "POST", ts.URL+"/api/stories/"+story.Story.ID+"/generate-images", nil, &result)
	if len(result.Skipped) != 2 || len(result.Generated) != 0 {
		t.Errorf("second run = %+v", result)
	}

	if code := do(t, "POST", ts.URL+"/api/stories/"+story.Story.ID+"/generate-images?force=maybe", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad force = %d, want 400", code)
	}
}

func TestServer_BatchOutlivesWriteTimeout(t *testing.T) {
	llm := &providers.MockClient{Responses: []string{storyReply, sceneReply}}
	images := providers.NewMockImageProvider(providers.Pending(), providers.Complete("https://x/img.png"))
	slow := generation.SleeperFunc(func(ctx context.Context, d time.Duration) error {
		select {
		case <-time.After(150 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	srv, err := New(Config{
		Memory:       true,
		Providers:    generation.StaticProviders{Prompts: prompts.NewComposer(prompts.ComposerConfig{LLM: llm}), Images: images},
		Sleeper:      slow,
		WriteTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.httpServer.WriteTimeout != 100*time.Millisecond {
		t.Fatalf("WriteTimeout = %v", srv.httpServer.WriteTimeout)
	}
	if err := srv.init(context.Background()); err != nil {
		t.Fatalf("init() error = %v", err)
	}
	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.WriteTimeout = srv.httpServer.WriteTimeout
	ts.Start()
	defer ts.Close()

	story := seedStory(t, ts.URL)

	// Each scene polls twice, so the batch runs well past the write timeout.
	var result generation.BatchResult
	if code := do(t, "POST", ts.URL+"/api/stories/"+story.Story.ID+"/generate-images", nil, &result); code != http.StatusOK {
		t.Fatalf("batch = %d", code)
	}
	if len(result.Generated) != 2 {
		t.Errorf("result = %+v", result)
	}
}
