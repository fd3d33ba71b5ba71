package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/config"
	"github.com/jackzampolin/reel/internal/defra"
	"github.com/jackzampolin/reel/internal/home"
)

var defraCmd = &cobra.Command{
	Use:   "defra",
	Short: "Manage the DefraDB container that stores storyboards",
	Long: `Manage the DefraDB container that stores projects, stories and scenes.

'reel serve' starts the container on boot and stops it on shutdown, so
these commands are only needed to inspect it or to run DefraDB on its own.
Serving with --memory or --defra-url does not use the container at all.

Container name, image and port come from the defra section of the config.
Data lives under <reel home>/data and survives stop and remove.

Examples:
  reel defra start        # create or start the container
  reel defra status -o json
  reel defra logs --tail 50
  reel defra remove       # drop the container, keep the data`,
}

// withManager resolves the reel home and config, builds the container
// manager and closes it after fn returns.
func withManager(fn func(ctx context.Context, h *home.Dir, mgr *defra.DockerManager) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := getDockerManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()
		return fn(cmd.Context(), h, mgr)
	}
}

var defraStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Create or start the DefraDB container and wait until it answers",
	RunE: withManager(func(ctx context.Context, h *home.Dir, mgr *defra.DockerManager) error {
		fmt.Printf("Starting DefraDB (data in %s)...\n", h.DataPath())
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start DefraDB: %w", err)
		}
		fmt.Printf("DefraDB is running at %s\n", mgr.URL())
		fmt.Printf("Serve against it with: reel serve --defra-url %s\n", mgr.URL())
		return nil
	}),
}

var defraStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the DefraDB container, keeping its data",
	RunE: withManager(func(ctx context.Context, h *home.Dir, mgr *defra.DockerManager) error {
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop DefraDB: %w", err)
		}
		fmt.Println("DefraDB stopped")
		return nil
	}),
}

// defraStatus is the output of `reel defra status`.
type defraStatus struct {
	Container string `json:"container" yaml:"container"`
	URL       string `json:"url" yaml:"url"`
	Health    string `json:"health" yaml:"health"`
	DataPath  string `json:"data_path" yaml:"data_path"`
	Hint      string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

var defraStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show container state and DefraDB health",
	RunE: withManager(func(ctx context.Context, h *home.Dir, mgr *defra.DockerManager) error {
		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		out := defraStatus{Container: string(status), URL: mgr.URL(), Health: "unknown", DataPath: h.DataPath()}
		switch status {
		case defra.StatusRunning:
			if err := defra.NewClient(mgr.URL()).HealthCheck(ctx); err != nil {
				out.Health = "unhealthy: " + err.Error()
			} else {
				out.Health = "healthy"
			}
		case defra.StatusStopped, defra.StatusNotFound:
			out.Hint = "run 'reel defra start' or 'reel serve'"
		}
		return api.Output(out)
	}),
}

var logsTail string

var defraLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the container's recent log lines",
	RunE: withManager(func(ctx context.Context, h *home.Dir, mgr *defra.DockerManager) error {
		logs, err := mgr.Logs(ctx, logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}
		fmt.Print(logs)
		return nil
	}),
}

var defraRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the container; storyboard data under the reel home is kept",
	RunE: withManager(func(ctx context.Context, h *home.Dir, mgr *defra.DockerManager) error {
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}
		fmt.Printf("DefraDB container removed, data kept in %s\n", h.DataPath())
		return nil
	}),
}

var waitTimeout time.Duration

var defraWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until DefraDB answers its health check",
	RunE: withManager(func(ctx context.Context, h *home.Dir, mgr *defra.DockerManager) error {
		if err := mgr.WaitReady(ctx, waitTimeout); err != nil {
			return fmt.Errorf("DefraDB not ready after %s: %w", waitTimeout, err)
		}
		fmt.Println("DefraDB is ready")
		return nil
	}),
}

func init() {
	defraCmd.AddCommand(defraStartCmd, defraStopCmd, defraStatusCmd, defraLogsCmd, defraRemoveCmd, defraWaitCmd)

	defraLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")
	defraWaitCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Second, "How long to wait")

	rootCmd.AddCommand(defraCmd)
}

// getHome returns the reel home directory, creating it if needed.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getDockerManager creates a DockerManager from the defra section of the config.
func getDockerManager(h *home.Dir) (*defra.DockerManager, error) {
	cm, err := config.NewManager(configPath(h))
	if err != nil {
		return nil, err
	}
	cfg := cm.Get().Defra
	return defra.NewDockerManager(defra.DockerConfig{
		ContainerName: cfg.ContainerName,
		Image:         cfg.Image,
		DataPath:      h.DataPath(),
		HostPort:      cfg.Port,
	})
}
