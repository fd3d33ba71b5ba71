package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/reel/internal/defra"
	"github.com/jackzampolin/reel/internal/types"
)

// Collection names, matching internal/schema.
const (
	collProject = "Project"
	collStory   = "Story"
	collScene   = "Scene"
)

var (
	projectFields = []string{"_docID", "name", "default_guidance_scale", "default_negative_prompt", "created_at"}
	storyFields   = []string{"_docID", "project_id", "topic", "platform", "character", "character_template", "settings", "created_at"}
	sceneFields   = []string{"_docID", "_version { cid }", "project_id", "story_id", "order", "text",
		"image_prompt", "video_prompt", "image_url", "generation_settings", "directives", "created_at", "updated_at"}
)

// DefraStore implements Store on DefraDB. A scene's Version is the CID of
// its head commit.
//
// The version check in UpdateScene is a read followed by a write, serialized
// per scene inside this process. Writers in other processes are not fenced.
type DefraStore struct {
	client *defra.Client
	logger *slog.Logger

	locks sync.Map // scene id -> *sync.Mutex
	now   func() time.Time
}

// NewDefraStore creates a DefraDB-backed store.
func NewDefraStore(client *defra.Client, logger *slog.Logger) *DefraStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefraStore{client: client, logger: logger, now: time.Now}
}

var _ Store = (*DefraStore)(nil)

func (s *DefraStore) Ping(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// --- projects ---

func (s *DefraStore) CreateProject(ctx context.Context, project types.Project) (*types.Project, error) {
	project.CreatedAt = s.now().UTC()
	res, err := s.client.Create(ctx, collProject, map[string]any{
		"name":                    project.Name,
		"default_guidance_scale":  project.DefaultGuidanceScale,
		"default_negative_prompt": project.DefaultNegativePrompt,
		"created_at":              formatTime(project.CreatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	project.ID = res.DocID
	return &project, nil
}

func (s *DefraStore) GetProject(ctx context.Context, id string) (*types.Project, error) {
	doc, err := s.getOne(ctx, collProject, id, projectFields)
	if err != nil {
		return nil, err
	}
	p := projectFromDoc(doc)
	return &p, nil
}

// ListProjects returns projects newest first.
func (s *DefraStore) ListProjects(ctx context.Context) ([]types.Project, error) {
	docs, err := defra.NewQuery(collProject).Fields(projectFields...).OrderBy("created_at", "DESC").Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	out := make([]types.Project, 0, len(docs))
	for _, d := range docs {
		out = append(out, projectFromDoc(d))
	}
	return out, nil
}

func (s *DefraStore) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*types.Project, error) {
	current, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	input := map[string]any{}
	if patch.Name != nil {
		input["name"] = *patch.Name
	}
	if patch.DefaultGuidanceScale != nil {
		input["default_guidance_scale"] = *patch.DefaultGuidanceScale
	}
	if patch.DefaultNegativePrompt != nil {
		input["default_negative_prompt"] = *patch.DefaultNegativePrompt
	}
	if len(input) > 0 {
		if _, err := s.client.Update(ctx, collProject, id, input); err != nil {
			return nil, fmt.Errorf("update project %s: %w", id, err)
		}
	}
	updated := patch.Apply(*current)
	return &updated, nil
}

func (s *DefraStore) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	stories, err := s.ListStories(ctx, id)
	if err != nil {
		return err
	}
	for _, st := range stories {
		scenes, err := s.ListScenes(ctx, st.ID)
		if err != nil {
			return err
		}
		for _, sc := range scenes {
			if err := s.client.Delete(ctx, collScene, sc.ID); err != nil {
				return fmt.Errorf("delete scene %s: %w", sc.ID, err)
			}
			s.locks.Delete(sc.ID)
		}
		if err := s.client.Delete(ctx, collStory, st.ID); err != nil {
			return fmt.Errorf("delete story %s: %w", st.ID, err)
		}
	}
	if err := s.client.Delete(ctx, collProject, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	s.logger.Info("project deleted", "project_id", id, "stories", len(stories))
	return nil
}

// --- stories ---

func (s *DefraStore) CreateStory(ctx context.Context, story types.Story) (*types.Story, error) {
	if _, err := s.GetProject(ctx, story.ProjectID); err != nil {
		return nil, err
	}
	story.CreatedAt = s.now().UTC()

	template, err := encodeJSON(story.CharacterTemplate)
	if err != nil {
		return nil, err
	}
	settings, err := encodeJSON(story.Settings)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Create(ctx, collStory, map[string]any{
		"project_id":         story.ProjectID,
		"topic":              story.Topic,
		"platform":           string(story.Platform),
		"character":          story.Character,
		"character_template": template,
		"settings":           settings,
		"created_at":         formatTime(story.CreatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	story.ID = res.DocID
	return &story, nil
}

func (s *DefraStore) GetStory(ctx context.Context, id string) (*types.Story, error) {
	doc, err := s.getOne(ctx, collStory, id, storyFields)
	if err != nil {
		return nil, err
	}
	st := s.storyFromDoc(doc)
	return &st, nil
}

func (s *DefraStore) ListStories(ctx context.Context, projectID string) ([]types.Story, error) {
	docs, err := defra.NewQuery(collStory).
		Filter("project_id", projectID).
		Fields(storyFields...).
		OrderBy("created_at", "ASC").
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	out := make([]types.Story, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.storyFromDoc(d))
	}
	return out, nil
}

// --- scenes ---

func (s *DefraStore) CreateScenes(ctx context.Context, storyID string, scenes []types.Scene) ([]types.Scene, error) {
	story, err := s.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}

	now := formatTime(s.now().UTC())
	inputs := make([]map[string]any, 0, len(scenes))
	for _, sc := range scenes {
		settings, err := encodeJSON(sc.GenerationSettings)
		if err != nil {
			return nil, err
		}
		directives, err := encodeJSON(sc.Directives)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, map[string]any{
			"project_id":          story.ProjectID,
			"story_id":            storyID,
			"order":               sc.Order,
			"text":                sc.Text,
			"image_prompt":        sc.ImagePrompt,
			"video_prompt":        sc.VideoPrompt,
			"image_url":           sc.ImageURL,
			"generation_settings": settings,
			"directives":          directives,
			"created_at":          now,
			"updated_at":          now,
		})
	}
	if _, err := s.client.CreateMany(ctx, collScene, inputs); err != nil {
		return nil, fmt.Errorf("create scenes: %w", err)
	}
	// CreateMany results are unordered; read back by story.
	return s.ListScenes(ctx, storyID)
}

func (s *DefraStore) GetScene(ctx context.Context, id string) (*types.Scene, error) {
	doc, err := s.getOne(ctx, collScene, id, sceneFields)
	if err != nil {
		return nil, err
	}
	sc := s.sceneFromDoc(doc)
	return &sc, nil
}

func (s *DefraStore) ListScenes(ctx context.Context, storyID string) ([]types.Scene, error) {
	docs, err := defra.NewQuery(collScene).
		Filter("story_id", storyID).
		Fields(sceneFields...).
		OrderBy("order", "ASC").
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	out := make([]types.Scene, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.sceneFromDoc(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *DefraStore) UpdateScene(ctx context.Context, id string, patch ScenePatch, ifVersion string) (*types.Scene, error) {
	mu := s.sceneLock(id)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.GetScene(ctx, id)
	if err != nil {
		return nil, err
	}
	if ifVersion != "" && ifVersion != current.Version {
		return nil, fmt.Errorf("scene %s at %s, expected %s: %w", id, current.Version, ifVersion, ErrConflict)
	}

	updatedAt := s.now().UTC()
	input, err := scenePatchInput(patch)
	if err != nil {
		return nil, err
	}
	input["updated_at"] = formatTime(updatedAt)

	res, err := s.client.Update(ctx, collScene, id, input)
	if err != nil {
		return nil, fmt.Errorf("update scene %s: %w", id, err)
	}

	updated := patch.Apply(*current)
	updated.Version = res.CID
	updated.UpdatedAt = updatedAt
	return &updated, nil
}

func (s *DefraStore) sceneLock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *DefraStore) getOne(ctx context.Context, collection, id string, fields []string) (map[string]any, error) {
	if err := defra.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	docs, err := defra.NewQuery(collection).Filter("_docID", id).Fields(fields...).Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	return docs[0], nil
}

func scenePatchInput(p ScenePatch) (map[string]any, error) {
	input := map[string]any{}
	if p.ImageURL != nil {
		input["image_url"] = *p.ImageURL
	}
	if p.ImagePrompt != nil {
		input["image_prompt"] = *p.ImagePrompt
	}
	if p.VideoPrompt != nil {
		input["video_prompt"] = *p.VideoPrompt
	}
	if p.GenerationSettings != nil {
		enc, err := encodeJSON(*p.GenerationSettings)
		if err != nil {
			return nil, err
		}
		input["generation_settings"] = enc
	}
	if p.Directives != nil {
		enc, err := encodeJSON(p.Directives)
		if err != nil {
			return nil, err
		}
		input["directives"] = enc
	}
	return input, nil
}

// --- document decoding ---

func projectFromDoc(doc map[string]any) types.Project {
	return types.Project{
		ID:                    str(doc, "_docID"),
		Name:                  str(doc, "name"),
		DefaultGuidanceScale:  integer(doc, "default_guidance_scale"),
		DefaultNegativePrompt: str(doc, "default_negative_prompt"),
		CreatedAt:             parseTime(str(doc, "created_at")),
	}
}

func (s *DefraStore) storyFromDoc(doc map[string]any) types.Story {
	st := types.Story{
		ID:        str(doc, "_docID"),
		ProjectID: str(doc, "project_id"),
		Topic:     str(doc, "topic"),
		Platform:  types.Platform(str(doc, "platform")),
		Character: str(doc, "character"),
		CreatedAt: parseTime(str(doc, "created_at")),
	}
	s.decodeJSON(doc, "character_template", &st.CharacterTemplate)
	s.decodeJSON(doc, "settings", &st.Settings)
	return st
}

func (s *DefraStore) sceneFromDoc(doc map[string]any) types.Scene {
	sc := types.Scene{
		ID:          str(doc, "_docID"),
		ProjectID:   str(doc, "project_id"),
		StoryID:     str(doc, "story_id"),
		Order:       integer(doc, "order"),
		Text:        str(doc, "text"),
		ImagePrompt: str(doc, "image_prompt"),
		VideoPrompt: str(doc, "video_prompt"),
		ImageURL:    str(doc, "image_url"),
		Version:     defra.HeadCID(doc),
		CreatedAt:   parseTime(str(doc, "created_at")),
		UpdatedAt:   parseTime(str(doc, "updated_at")),
	}
	s.decodeJSON(doc, "generation_settings", &sc.GenerationSettings)
	s.decodeJSON(doc, "directives", &sc.Directives)
	return sc
}

// decodeJSON reads a JSON-encoded string field. Malformed values are logged
// and left at their zero value.
func (s *DefraStore) decodeJSON(doc map[string]any, key string, v any) {
	raw := str(doc, key)
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn("malformed JSON field", "doc_id", str(doc, "_docID"), "field", key, "error", err)
	}
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return string(b), nil
}

func str(doc map[string]any, key string) string {
	v, _ := doc[key].(string)
	return v
}

func integer(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
