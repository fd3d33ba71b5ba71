package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/generation"
	"github.com/jackzampolin/reel/internal/svcctx"
)

// ListGenerationsResponse lists recently tracked jobs, newest first.
type ListGenerationsResponse struct {
	Generations []generation.Job `json:"generations"`
}

// ListGenerationsEndpoint handles GET /api/generations.
type ListGenerationsEndpoint struct{}

func (e *ListGenerationsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/generations", e.handler
}

func (e *ListGenerationsEndpoint) RequiresInit() bool { return true }
func (e *ListGenerationsEndpoint) Group() string      { return "generations" }

// handler godoc
//
//	@Summary		List recent generation jobs
//	@Description	Jobs are kept in memory for a limited time and do not survive a restart.
//	@Tags			generations
//	@Produce		json
//	@Success		200	{object}	ListGenerationsResponse
//	@Router			/api/generations [get]
func (e *ListGenerationsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobs := svcctx.GenerationFrom(r.Context()).Tracker().List()
	if jobs == nil {
		jobs = []generation.Job{}
	}
	writeJSON(w, http.StatusOK, ListGenerationsResponse{Generations: jobs})
}

func (e *ListGenerationsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp ListGenerationsResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/generations", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetGenerationEndpoint handles GET /api/generations/{jobId}.
type GetGenerationEndpoint struct{}

func (e *GetGenerationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/generations/{jobId}", e.handler
}

func (e *GetGenerationEndpoint) RequiresInit() bool { return true }
func (e *GetGenerationEndpoint) Group() string      { return "generations" }

// handler godoc
//
//	@Summary	Get a generation job's progress
//	@Tags		generations
//	@Produce	json
//	@Param		jobId	path		string	true	"Provider job ID"
//	@Success	200		{object}	generation.Job
//	@Failure	404		{object}	ErrorResponse
//	@Router		/api/generations/{jobId} [get]
func (e *GetGenerationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")
	job, ok := svcctx.GenerationFrom(r.Context()).Tracker().Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("generation %s not found", id), Code: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *GetGenerationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Get a generation job's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job generation.Job
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/generations/"+args[0], &job); err != nil {
				return err
			}
			return api.Output(job)
		},
	}
}
