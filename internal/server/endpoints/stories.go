package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/export"
	"github.com/jackzampolin/reel/internal/generation"
	"github.com/jackzampolin/reel/internal/svcctx"
	"github.com/jackzampolin/reel/internal/types"
)

// StoryResponse is a story with its scenes in order.
type StoryResponse struct {
	Story  types.Story   `json:"story"`
	Scenes []types.Scene `json:"scenes"`
}

// ListStoriesResponse is the response for listing a project's stories.
type ListStoriesResponse struct {
	Stories []types.Story `json:"stories"`
}

// GenerateStoryEndpoint handles POST /api/projects/{id}/story.
type GenerateStoryEndpoint struct{}

func (e *GenerateStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/projects/{id}/story", e.handler
}

func (e *GenerateStoryEndpoint) RequiresInit() bool { return true }
func (e *GenerateStoryEndpoint) Group() string      { return "stories" }

// handler godoc
//
//	@Summary		Draft a story
//	@Description	Asks the language model for a scene-by-scene script and stores it.
//	@Tags			stories
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Project ID"
//	@Param			request	body		generation.StoryInput	true	"Story request"
//	@Success		201		{object}	StoryResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/api/projects/{id}/story [post]
func (e *GenerateStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req generation.StoryInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	switch req.Platform {
	case "", types.PlatformTikTok, types.PlatformInstagram, types.PlatformYouTube:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown platform %q", req.Platform))
		return
	}

	story, scenes, err := svcctx.GenerationFrom(r.Context()).GenerateStory(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, StoryResponse{Story: *story, Scenes: scenes})
}

func (e *GenerateStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		platform  string
		character string
		template  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "generate <project-id> <topic>",
		Short: "Draft a new story for a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := generation.StoryInput{
				Topic:             args[1],
				Platform:          types.Platform(platform),
				Character:         character,
				CharacterTemplate: template,
			}
			var resp StoryResponse
			path := "/api/projects/" + args[0] + "/story"
			if err := api.NewClient(getServerURL()).Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "youtube", "Target platform: tiktok, instagram or youtube")
	cmd.Flags().StringVar(&character, "character", "", "Main character description")
	cmd.Flags().StringToStringVar(&template, "template", nil, "Character template attributes, e.g. bodyType=slender")
	return cmd
}

// ListStoriesEndpoint handles GET /api/projects/{id}/stories.
type ListStoriesEndpoint struct{}

func (e *ListStoriesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/projects/{id}/stories", e.handler
}

func (e *ListStoriesEndpoint) RequiresInit() bool { return true }
func (e *ListStoriesEndpoint) Group() string      { return "stories" }

// handler godoc
//
//	@Summary	List a project's stories
//	@Tags		stories
//	@Produce	json
//	@Param		id	path		string	true	"Project ID"
//	@Success	200	{object}	ListStoriesResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/projects/{id}/stories [get]
func (e *ListStoriesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)
	id := r.PathValue("id")
	if _, err := st.GetProject(ctx, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	stories, err := st.ListStories(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if stories == nil {
		stories = []types.Story{}
	}
	writeJSON(w, http.StatusOK, ListStoriesResponse{Stories: stories})
}

func (e *ListStoriesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's stories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp ListStoriesResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/projects/"+args[0]+"/stories", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetStoryEndpoint handles GET /api/stories/{id}.
type GetStoryEndpoint struct{}

func (e *GetStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}", e.handler
}

func (e *GetStoryEndpoint) RequiresInit() bool { return true }
func (e *GetStoryEndpoint) Group() string      { return "stories" }

// handler godoc
//
//	@Summary	Get a story with its scenes
//	@Tags		stories
//	@Produce	json
//	@Param		id	path		string	true	"Story ID"
//	@Success	200	{object}	StoryResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/stories/{id} [get]
func (e *GetStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)
	story, err := st.GetStory(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	scenes, err := st.ListScenes(ctx, story.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if scenes == nil {
		scenes = []types.Scene{}
	}
	writeJSON(w, http.StatusOK, StoryResponse{Story: *story, Scenes: scenes})
}

func (e *GetStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <story-id>",
		Short: "Get a story with its scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp StoryResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/stories/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GenerateImagesEndpoint handles POST /api/stories/{id}/generate-images.
type GenerateImagesEndpoint struct{}

func (e *GenerateImagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/stories/{id}/generate-images", e.handler
}

func (e *GenerateImagesEndpoint) RequiresInit() bool { return true }
func (e *GenerateImagesEndpoint) Group() string      { return "stories" }

// handler godoc
//
//	@Summary		Generate images for a whole story
//	@Description	Generates every scene without an image, or every scene when force is set.
//	@Description	Per-scene failures are reported in the result and do not fail the request.
//	@Tags			stories
//	@Produce		json
//	@Param			id		path		string	true	"Story ID"
//	@Param			force	query		bool	false	"Regenerate scenes that already have an image"
//	@Success		200		{object}	generation.BatchResult
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/stories/{id}/generate-images [post]
func (e *GenerateImagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = b
	}

	holdOpen(w)
	result, err := svcctx.GenerationFrom(r.Context()).GenerateAll(r.Context(), r.PathValue("id"), force)
	if err != nil && result == nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *GenerateImagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		force   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate-images <story-id>",
		Short: "Generate images for every scene of a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/stories/" + args[0] + "/generate-images"
			if force {
				path += "?force=true"
			}
			var result generation.BatchResult
			client := api.NewClientWithTimeout(getServerURL(), timeout)
			if err := client.Post(cmd.Context(), path, nil, &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate scenes that already have an image")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits until the batch finishes or Ctrl-C)")
	return cmd
}

// StoryboardEndpoint handles GET /api/stories/{id}/storyboard.pdf.
type StoryboardEndpoint struct{}

func (e *StoryboardEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}/storyboard.pdf", e.handler
}

func (e *StoryboardEndpoint) RequiresInit() bool { return true }
func (e *StoryboardEndpoint) Group() string      { return "stories" }

// handler godoc
//
//	@Summary		Export a storyboard PDF
//	@Description	One page per generated scene, in scene order.
//	@Tags			stories
//	@Produce		application/pdf
//	@Param			id	path		string	true	"Story ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/stories/{id}/storyboard.pdf [get]
func (e *StoryboardEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)
	story, err := st.GetStory(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	scenes, err := st.ListScenes(ctx, story.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pdf, err := exportStoryboard(ctx, story.ID, scenes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", story.ID+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (e *StoryboardEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "storyboard <story-id>",
		Short: "Download a story's storyboard as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := api.NewClient(getServerURL()).Download(cmd.Context(), "/api/stories/"+args[0]+"/storyboard.pdf")
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = args[0] + ".pdf"
			}
			if err := api.WriteFile(path, data); err != nil {
				return err
			}
			if path != "-" {
				fmt.Printf("Wrote %s (%d bytes)\n", path, len(data))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "Output path, - for stdout (default: <story-id>.pdf)")
	return cmd
}

// exportStoryboard renders the PDF and keeps a copy under the home exports
// directory when one is configured. A failed copy is logged, not returned.
func exportStoryboard(ctx context.Context, storyID string, scenes []types.Scene) ([]byte, error) {
	logger := svcctx.LoggerFrom(ctx)
	fetcher := svcctx.FetcherFrom(ctx)
	if fetcher == nil {
		fetcher = export.NewHTTPFetcher(0)
	}

	pdf, err := export.Storyboard(ctx, scenes, fetcher, logger)
	if err != nil {
		return nil, err
	}

	if h := svcctx.HomeFrom(ctx); h != nil {
		path := h.StoryboardPath(storyID)
		if err := os.MkdirAll(h.ExportsDir(), 0o755); err != nil {
			logger.Warn("failed to create exports directory", "error", err)
		} else if err := os.WriteFile(path, pdf, 0o644); err != nil {
			logger.Warn("failed to save storyboard", "path", path, "error", err)
		}
	}
	return pdf, nil
}
