// Package store persists projects, stories and scenes.
//
// Scenes carry an opaque Version that changes on every write. UpdateScene
// takes the version the caller last read and refuses the write with
// ErrConflict when the document has moved on, which is how a generation
// that raced a concurrent edit is detected.
package store

import (
	"context"
	"errors"

	"github.com/jackzampolin/reel/internal/types"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional update sees a different version.
	ErrConflict = errors.New("version conflict")
)

// ScenePatch lists the scene fields a single update may change.
// Nil fields are left untouched.
type ScenePatch struct {
	ImageURL           *string
	ImagePrompt        *string
	VideoPrompt        *string
	GenerationSettings *types.GenerationSettings
	Directives         map[string]string
}

// Empty reports whether the patch changes nothing.
func (p ScenePatch) Empty() bool {
	return p.ImageURL == nil && p.ImagePrompt == nil && p.VideoPrompt == nil &&
		p.GenerationSettings == nil && p.Directives == nil
}

// Apply returns scene with the patch merged in.
func (p ScenePatch) Apply(scene types.Scene) types.Scene {
	if p.ImageURL != nil {
		scene.ImageURL = *p.ImageURL
	}
	if p.ImagePrompt != nil {
		scene.ImagePrompt = *p.ImagePrompt
	}
	if p.VideoPrompt != nil {
		scene.VideoPrompt = *p.VideoPrompt
	}
	if p.GenerationSettings != nil {
		scene.GenerationSettings = *p.GenerationSettings
	}
	if p.Directives != nil {
		scene.Directives = p.Directives
	}
	return scene
}

// ProjectPatch lists the project fields an update may change.
type ProjectPatch struct {
	Name                  *string `json:"name,omitempty"`
	DefaultGuidanceScale  *int    `json:"default_guidance_scale,omitempty"`
	DefaultNegativePrompt *string `json:"default_negative_prompt,omitempty"`
}

// Apply returns project with the patch merged in.
func (p ProjectPatch) Apply(project types.Project) types.Project {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.DefaultGuidanceScale != nil {
		project.DefaultGuidanceScale = *p.DefaultGuidanceScale
	}
	if p.DefaultNegativePrompt != nil {
		project.DefaultNegativePrompt = *p.DefaultNegativePrompt
	}
	return project
}

// Store is the document store behind the server.
type Store interface {
	Ping(ctx context.Context) error

	CreateProject(ctx context.Context, project types.Project) (*types.Project, error)
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]types.Project, error)
	UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*types.Project, error)
	// DeleteProject removes the project with its stories and scenes.
	DeleteProject(ctx context.Context, id string) error

	CreateStory(ctx context.Context, story types.Story) (*types.Story, error)
	GetStory(ctx context.Context, id string) (*types.Story, error)
	ListStories(ctx context.Context, projectID string) ([]types.Story, error)

	// CreateScenes stores scenes for a story and returns them ordered by Order.
	CreateScenes(ctx context.Context, storyID string, scenes []types.Scene) ([]types.Scene, error)
	GetScene(ctx context.Context, id string) (*types.Scene, error)
	ListScenes(ctx context.Context, storyID string) ([]types.Scene, error)

	// UpdateScene merges patch into the scene in one write. When ifVersion is
	// non-empty and differs from the stored version nothing is written and
	// ErrConflict is returned.
	UpdateScene(ctx context.Context, id string, patch ScenePatch, ifVersion string) (*types.Scene, error)
}
