package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/reel/internal/types"
)

// MemoryStore is an in-process Store used by tests and `reel serve --memory`.
// Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]types.Project
	stories  map[string]types.Story
	scenes   map[string]types.Scene
	writes   map[string]int // scene id -> successful UpdateScene calls
	created  map[string]int // project id -> creation sequence
	seq      int

	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]types.Project),
		stories:  make(map[string]types.Story),
		scenes:   make(map[string]types.Scene),
		writes:   make(map[string]int),
		created:  make(map[string]int),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) CreateProject(ctx context.Context, project types.Project) (*types.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	project.ID = uuid.NewString()
	project.CreatedAt = m.now().UTC()
	m.projects[project.ID] = project
	m.seq++
	m.created[project.ID] = m.seq
	return &project, nil
}

func (m *MemoryStore) GetProject(ctx context.Context, id string) (*types.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

// ListProjects returns projects newest first.
func (m *MemoryStore) ListProjects(ctx context.Context) ([]types.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return m.created[out[i].ID] > m.created[out[j].ID] })
	return out, nil
}

func (m *MemoryStore) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*types.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	p = patch.Apply(p)
	m.projects[id] = p
	return &p, nil
}

func (m *MemoryStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	for sid, s := range m.stories {
		if s.ProjectID == id {
			delete(m.stories, sid)
		}
	}
	for sid, s := range m.scenes {
		if s.ProjectID == id {
			delete(m.scenes, sid)
			delete(m.writes, sid)
		}
	}
	delete(m.projects, id)
	delete(m.created, id)
	return nil
}

func (m *MemoryStore) CreateStory(ctx context.Context, story types.Story) (*types.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[story.ProjectID]; !ok {
		return nil, fmt.Errorf("project %s: %w", story.ProjectID, ErrNotFound)
	}
	story.ID = uuid.NewString()
	story.CreatedAt = m.now().UTC()
	m.stories[story.ID] = story
	return &story, nil
}

func (m *MemoryStore) GetStory(ctx context.Context, id string) (*types.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stories[id]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryStore) ListStories(ctx context.Context, projectID string) ([]types.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Story
	for _, s := range m.stories {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateScenes(ctx context.Context, storyID string, scenes []types.Scene) ([]types.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	story, ok := m.stories[storyID]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", storyID, ErrNotFound)
	}

	now := m.now().UTC()
	out := make([]types.Scene, 0, len(scenes))
	for _, sc := range scenes {
		sc.ID = uuid.NewString()
		sc.StoryID = storyID
		sc.ProjectID = story.ProjectID
		sc.Version = uuid.NewString()
		sc.CreatedAt = now
		sc.UpdatedAt = now
		m.scenes[sc.ID] = sc
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryStore) GetScene(ctx context.Context, id string) (*types.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryStore) ListScenes(ctx context.Context, storyID string) ([]types.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Scene
	for _, s := range m.scenes {
		if s.StoryID == storyID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryStore) UpdateScene(ctx context.Context, id string, patch ScenePatch, ifVersion string) (*types.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	if ifVersion != "" && ifVersion != s.Version {
		return nil, fmt.Errorf("scene %s at %s, expected %s: %w", id, s.Version, ifVersion, ErrConflict)
	}

	s = patch.Apply(s)
	s.Version = uuid.NewString()
	s.UpdatedAt = m.now().UTC()
	m.scenes[id] = s
	m.writes[id]++
	return &s, nil
}

// Writes returns how many updates have been applied to a scene.
func (m *MemoryStore) Writes(sceneID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[sceneID]
}
