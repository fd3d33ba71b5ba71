package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/providers"
)

// ModelsResponse describes the image models and styles a scene can use.
type ModelsResponse struct {
	DefaultModelID string            `json:"default_model_id"`
	Models         []providers.Model `json:"models"`
	PresetStyles   []string          `json:"preset_styles"`
	StyleUUIDs     map[string]string `json:"style_uuids"`
}

// ListModelsEndpoint handles GET /api/models.
type ListModelsEndpoint struct{}

func (e *ListModelsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/models", e.handler
}

func (e *ListModelsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	List image models and styles
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	ModelsResponse
//	@Router		/api/models [get]
func (e *ListModelsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{
		DefaultModelID: providers.DefaultModelID,
		Models:         providers.Catalog,
		PresetStyles:   providers.PresetStyles,
		StyleUUIDs:     providers.StyleUUIDs,
	})
}

func (e *ListModelsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List image models and styles",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp ModelsResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/models", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
