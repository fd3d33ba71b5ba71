package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/config"
	"github.com/jackzampolin/reel/internal/defra"
	"github.com/jackzampolin/reel/internal/server"
	"github.com/jackzampolin/reel/internal/server/endpoints"
)

var (
	serveHost     string
	servePort     string
	serveMemory   bool
	serveDefraURL string
	serveDebug    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Reel server",
	Long: `Start the Reel HTTP server.

By default this also starts the DefraDB container and stops it again when
the server shuts down (via Ctrl+C or SIGTERM). Use --defra-url to use a
DefraDB you run yourself, or --memory to keep everything in process.

The config file is watched: provider keys, the default models and the
polling policy can be changed without a restart.

The server provides:
  - /health  - Basic server health check
  - /ready   - Readiness check (includes the store)
  - /api/... - Projects, stories, scenes and image generation

Examples:
  reel serve                    # Start on default port 8080
  reel serve --port 3000        # Start on custom port
  reel serve --memory           # No DefraDB, nothing persisted
  reel serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level := slog.LevelInfo
		if serveDebug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

		h, err := getHome()
		if err != nil {
			return err
		}

		cm, err := config.NewManager(configPath(h))
		if err != nil {
			return err
		}
		cm.WatchConfig()
		cfg := cm.Get()
		if f := cm.ConfigFile(); f != "" {
			logger.Info("loaded config", "file", f)
		}

		defraURL := serveDefraURL
		if defraURL == "" {
			defraURL = cfg.Defra.URL
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Memory:        serveMemory,
			DefraURL:      defraURL,
			DefraDataPath: h.DataPath(),
			DefraConfig: defra.DockerConfig{
				ContainerName: cfg.Defra.ContainerName,
				Image:         cfg.Defra.Image,
				HostPort:      cfg.Defra.Port,
			},
			ConfigManager:   cm,
			Home:            h,
			SwaggerSpecPath: endpoints.GetSwaggerSpecPath(),
			Logger:          logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Use an in-memory store instead of DefraDB")
	serveCmd.Flags().StringVar(&serveDefraURL, "defra-url", "", "URL of an external DefraDB (skips the managed container)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
}
