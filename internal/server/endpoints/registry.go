package endpoints

import (
	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/defra"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DefraManager    *defra.DockerManager
	SwaggerSpecPath string
}

// All returns all endpoint instances. Order decides the CLI group order.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DefraManager: cfg.DefraManager},
		&ListModelsEndpoint{},

		// Projects
		&CreateProjectEndpoint{},
		&ListProjectsEndpoint{},
		&GetProjectEndpoint{},
		&UpdateProjectEndpoint{},
		&DeleteProjectEndpoint{},

		// Stories
		&GenerateStoryEndpoint{},
		&ListStoriesEndpoint{},
		&GetStoryEndpoint{},
		&GenerateImagesEndpoint{},
		&StoryboardEndpoint{},

		// Scenes
		&ListScenesEndpoint{},
		&GetSceneEndpoint{},
		&UpdateSceneSettingsEndpoint{},
		&GenerateImageEndpoint{},

		// Generation jobs
		&ListGenerationsEndpoint{},
		&GetGenerationEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}
