package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/store"
	"github.com/jackzampolin/reel/internal/svcctx"
	"github.com/jackzampolin/reel/internal/types"
)

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name                  string `json:"name"`
	DefaultGuidanceScale  int    `json:"default_guidance_scale,omitempty"`
	DefaultNegativePrompt string `json:"default_negative_prompt,omitempty"`
}

// ListProjectsResponse is the response for listing projects.
type ListProjectsResponse struct {
	Projects []types.Project `json:"projects"`
}

// CreateProjectEndpoint handles POST /api/projects.
type CreateProjectEndpoint struct{}

func (e *CreateProjectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/projects", e.handler
}

func (e *CreateProjectEndpoint) RequiresInit() bool { return true }
func (e *CreateProjectEndpoint) Group() string      { return "projects" }

// handler godoc
//
//	@Summary	Create a project
//	@Tags		projects
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateProjectRequest	true	"Project"
//	@Success	201		{object}	types.Project
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/projects [post]
func (e *CreateProjectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := svcctx.StoreFrom(r.Context()).CreateProject(r.Context(), types.Project{
		Name:                  req.Name,
		DefaultGuidanceScale:  req.DefaultGuidanceScale,
		DefaultNegativePrompt: req.DefaultNegativePrompt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (e *CreateProjectEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CreateProjectRequest
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			var project types.Project
			if err := api.NewClient(getServerURL()).Post(cmd.Context(), "/api/projects", req, &project); err != nil {
				return err
			}
			return api.Output(project)
		},
	}
	cmd.Flags().IntVar(&req.DefaultGuidanceScale, "guidance-scale", 0, "Default guidance scale for the project's scenes")
	cmd.Flags().StringVar(&req.DefaultNegativePrompt, "negative-prompt", "", "Default negative prompt")
	return cmd
}

// ListProjectsEndpoint handles GET /api/projects.
type ListProjectsEndpoint struct{}

func (e *ListProjectsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/projects", e.handler
}

func (e *ListProjectsEndpoint) RequiresInit() bool { return true }
func (e *ListProjectsEndpoint) Group() string      { return "projects" }

// handler godoc
//
//	@Summary	List projects
//	@Tags		projects
//	@Produce	json
//	@Success	200	{object}	ListProjectsResponse
//	@Router		/api/projects [get]
func (e *ListProjectsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	projects, err := svcctx.StoreFrom(r.Context()).ListProjects(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if projects == nil {
		projects = []types.Project{}
	}
	writeJSON(w, http.StatusOK, ListProjectsResponse{Projects: projects})
}

func (e *ListProjectsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp ListProjectsResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/projects", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetProjectEndpoint handles GET /api/projects/{id}.
type GetProjectEndpoint struct{}

func (e *GetProjectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/projects/{id}", e.handler
}

func (e *GetProjectEndpoint) RequiresInit() bool { return true }
func (e *GetProjectEndpoint) Group() string      { return "projects" }

// handler godoc
//
//	@Summary	Get project by ID
//	@Tags		projects
//	@Produce	json
//	@Param		id	path		string	true	"Project ID"
//	@Success	200	{object}	types.Project
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/projects/{id} [get]
func (e *GetProjectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	project, err := svcctx.StoreFrom(r.Context()).GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (e *GetProjectEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a project by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var project types.Project
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/projects/"+args[0], &project); err != nil {
				return err
			}
			return api.Output(project)
		},
	}
}

// UpdateProjectEndpoint handles PATCH /api/projects/{id}.
type UpdateProjectEndpoint struct{}

func (e *UpdateProjectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/projects/{id}", e.handler
}

func (e *UpdateProjectEndpoint) RequiresInit() bool { return true }
func (e *UpdateProjectEndpoint) Group() string      { return "projects" }

// handler godoc
//
//	@Summary	Update a project
//	@Tags		projects
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Project ID"
//	@Param		request	body		store.ProjectPatch	true	"Fields to change"
//	@Success	200		{object}	types.Project
//	@Failure	404		{object}	ErrorResponse
//	@Router		/api/projects/{id} [patch]
func (e *UpdateProjectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var patch store.ProjectPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Name != nil && *patch.Name == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	project, err := svcctx.StoreFrom(r.Context()).UpdateProject(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (e *UpdateProjectEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		name     string
		guidance int
		negative string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch store.ProjectPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("guidance-scale") {
				patch.DefaultGuidanceScale = &guidance
			}
			if cmd.Flags().Changed("negative-prompt") {
				patch.DefaultNegativePrompt = &negative
			}
			var project types.Project
			if err := api.NewClient(getServerURL()).Patch(cmd.Context(), "/api/projects/"+args[0], patch, &project); err != nil {
				return err
			}
			return api.Output(project)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New project name")
	cmd.Flags().IntVar(&guidance, "guidance-scale", 0, "Default guidance scale")
	cmd.Flags().StringVar(&negative, "negative-prompt", "", "Default negative prompt")
	return cmd
}

// DeleteProjectEndpoint handles DELETE /api/projects/{id}.
type DeleteProjectEndpoint struct{}

func (e *DeleteProjectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/projects/{id}", e.handler
}

func (e *DeleteProjectEndpoint) RequiresInit() bool { return true }
func (e *DeleteProjectEndpoint) Group() string      { return "projects" }

// handler godoc
//
//	@Summary		Delete a project
//	@Description	Deletes the project with all of its stories and scenes.
//	@Tags			projects
//	@Param			id	path	string	true	"Project ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/projects/{id} [delete]
func (e *DeleteProjectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.StoreFrom(r.Context()).DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteProjectEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.NewClient(getServerURL()).Delete(cmd.Context(), "/api/projects/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted project %s\n", args[0])
			return nil
		},
	}
}
