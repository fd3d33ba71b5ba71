package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/generation"
	"github.com/jackzampolin/reel/internal/svcctx"
	"github.com/jackzampolin/reel/internal/types"
)

// SceneResponse is a scene with its live generation state.
type SceneResponse struct {
	types.Scene
	Generating bool `json:"generating"`
}

// ListScenesResponse is the response for listing a story's scenes.
type ListScenesResponse struct {
	Scenes []SceneResponse `json:"scenes"`
}

// ListScenesEndpoint handles GET /api/stories/{id}/scenes.
type ListScenesEndpoint struct{}

func (e *ListScenesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}/scenes", e.handler
}

func (e *ListScenesEndpoint) RequiresInit() bool { return true }
func (e *ListScenesEndpoint) Group() string      { return "scenes" }

// handler godoc
//
//	@Summary	List a story's scenes in order
//	@Tags		scenes
//	@Produce	json
//	@Param		id	path		string	true	"Story ID"
//	@Success	200	{object}	ListScenesResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/stories/{id}/scenes [get]
func (e *ListScenesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)
	gen := svcctx.GenerationFrom(ctx)

	id := r.PathValue("id")
	if _, err := st.GetStory(ctx, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	scenes, err := st.ListScenes(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := ListScenesResponse{Scenes: make([]SceneResponse, len(scenes))}
	for i, sc := range scenes {
		resp.Scenes[i] = SceneResponse{Scene: sc, Generating: gen.InProgress(sc.ID)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListScenesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <story-id>",
		Short: "List a story's scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp ListScenesResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/stories/"+args[0]+"/scenes", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetSceneEndpoint handles GET /api/scenes/{id}.
type GetSceneEndpoint struct{}

func (e *GetSceneEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/scenes/{id}", e.handler
}

func (e *GetSceneEndpoint) RequiresInit() bool { return true }
func (e *GetSceneEndpoint) Group() string      { return "scenes" }

// handler godoc
//
//	@Summary	Get scene by ID
//	@Tags		scenes
//	@Produce	json
//	@Param		id	path		string	true	"Scene ID"
//	@Success	200	{object}	SceneResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/scenes/{id} [get]
func (e *GetSceneEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scene, err := svcctx.StoreFrom(ctx).GetScene(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SceneResponse{Scene: *scene, Generating: svcctx.GenerationFrom(ctx).InProgress(scene.ID)})
}

func (e *GetSceneEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <scene-id>",
		Short: "Get a scene by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp SceneResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/scenes/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UpdateSceneSettingsEndpoint handles PATCH /api/scenes/{id}/settings.
type UpdateSceneSettingsEndpoint struct{}

func (e *UpdateSceneSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/scenes/{id}/settings", e.handler
}

func (e *UpdateSceneSettingsEndpoint) RequiresInit() bool { return true }
func (e *UpdateSceneSettingsEndpoint) Group() string      { return "scenes" }

// handler godoc
//
//	@Summary		Edit a scene's generation settings or directives
//	@Description	Pass version to make the edit conditional on the scene not having changed.
//	@Tags			scenes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Scene ID"
//	@Param			request	body		generation.SettingsUpdate	true	"Settings"
//	@Success		200		{object}	types.Scene
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/api/scenes/{id}/settings [patch]
func (e *UpdateSceneSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req generation.SettingsUpdate
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scene, err := svcctx.GenerationFrom(r.Context()).UpdateSettings(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

func (e *UpdateSceneSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		flags      settingsFlags
		directives map[string]string
		version    string
	)
	cmd := &cobra.Command{
		Use:   "settings <scene-id>",
		Short: "Edit a scene's generation settings or directives",
		Long: `Edit a scene's generation settings or directives.

Only the flags given change; the scene keeps its other stored settings.
Pass --directive key= to remove a directive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := generation.SettingsUpdate{
				Settings:   flags.settings(cmd),
				Directives: directives,
				Version:    version,
			}
			var scene types.Scene
			if err := api.NewClient(getServerURL()).Patch(cmd.Context(), "/api/scenes/"+args[0]+"/settings", req, &scene); err != nil {
				return err
			}
			return api.Output(scene)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringToStringVar(&directives, "directive", nil, "Scene directives, e.g. lighting=dawn,cameraView=wide")
	cmd.Flags().StringVar(&version, "if-version", "", "Only apply if the scene is still at this version")
	return cmd
}

// GenerateImageEndpoint handles POST /api/scenes/{id}/generate-image.
type GenerateImageEndpoint struct{}

func (e *GenerateImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scenes/{id}/generate-image", e.handler
}

func (e *GenerateImageEndpoint) RequiresInit() bool { return true }
func (e *GenerateImageEndpoint) Group() string      { return "scenes" }

// handler godoc
//
//	@Summary		Generate an image for a scene
//	@Description	Blocks until the provider job finishes. The scene is only
//	@Description	updated when an image was produced.
//	@Tags			scenes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Scene ID"
//	@Param			request	body		generation.Overrides	false	"Prompt and settings overrides"
//	@Success		200		{object}	types.Scene
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"In progress or concurrent edit"
//	@Failure		422		{object}	ErrorResponse	"Prompt composition failed"
//	@Failure		424		{object}	ErrorResponse	"Provider reported failure"
//	@Failure		502		{object}	ErrorResponse	"Provider rejected the job"
//	@Failure		504		{object}	ErrorResponse	"Timed out waiting for the provider"
//	@Router			/api/scenes/{id}/generate-image [post]
func (e *GenerateImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req generation.Overrides
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	holdOpen(w)
	scene, err := svcctx.GenerationFrom(r.Context()).GenerateImage(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

func (e *GenerateImageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		flags  settingsFlags
		prompt string
	)
	cmd := &cobra.Command{
		Use:   "generate <scene-id>",
		Short: "Generate an image for a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := generation.Overrides{Prompt: prompt, Settings: flags.settings(cmd)}
			var scene types.Scene
			if err := api.NewClient(getServerURL()).Post(cmd.Context(), "/api/scenes/"+args[0]+"/generate-image", req, &scene); err != nil {
				return err
			}
			return api.Output(scene)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&prompt, "prompt", "", "Use this image prompt verbatim instead of composing one")
	return cmd
}

// settingsFlags are the generation settings a CLI command can override.
type settingsFlags struct {
	model    string
	preset   string
	style    string
	guidance int
	negative string
	width    int
	height   int
	alchemy  bool
	contrast float64
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", "", "Image model ID")
	cmd.Flags().StringVar(&f.preset, "preset-style", "", "Preset style for sdxl models, e.g. CINEMATIC")
	cmd.Flags().StringVar(&f.style, "style-uuid", "", "Style UUID for phoenix, flux and lucid models")
	cmd.Flags().IntVar(&f.guidance, "guidance-scale", 0, "Guidance scale")
	cmd.Flags().StringVar(&f.negative, "negative-prompt", "", "Negative prompt")
	cmd.Flags().IntVar(&f.width, "width", 0, "Image width")
	cmd.Flags().IntVar(&f.height, "height", 0, "Image height")
	cmd.Flags().BoolVar(&f.alchemy, "alchemy", false, "Enable alchemy")
	cmd.Flags().Float64Var(&f.contrast, "contrast", 0, "Contrast for phoenix and flux models")
}

// settings returns nil when no settings flag was given.
func (f *settingsFlags) settings(cmd *cobra.Command) *types.GenerationSettings {
	changed := false
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "model", "preset-style", "style-uuid", "guidance-scale", "negative-prompt",
			"width", "height", "alchemy", "contrast":
			changed = true
		}
	})
	if !changed {
		return nil
	}
	s := &types.GenerationSettings{
		ModelID:        f.model,
		PresetStyle:    f.preset,
		StyleUUID:      f.style,
		GuidanceScale:  f.guidance,
		NegativePrompt: f.negative,
		Width:          f.width,
		Height:         f.height,
		Contrast:       f.contrast,
	}
	if cmd.Flags().Changed("alchemy") {
		s.Alchemy = types.Bool(f.alchemy)
	}
	return s
}
