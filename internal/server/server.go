package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/config"
	"github.com/jackzampolin/reel/internal/defra"
	"github.com/jackzampolin/reel/internal/export"
	"github.com/jackzampolin/reel/internal/generation"
	"github.com/jackzampolin/reel/internal/home"
	"github.com/jackzampolin/reel/internal/providers"
	"github.com/jackzampolin/reel/internal/schema"
	"github.com/jackzampolin/reel/internal/server/endpoints"
	"github.com/jackzampolin/reel/internal/store"
	"github.com/jackzampolin/reel/internal/svcctx"
)

// defaultWriteTimeout bounds a response. Generation endpoints lift it for
// their own requests since they hold the request open while provider jobs
// run.
const defaultWriteTimeout = 15 * time.Minute

// Server is the main Reel HTTP server.
// Unless it runs on the memory store or an external DefraDB, it manages the
// DefraDB container lifecycle: starting it on server start and stopping it
// on server shutdown.
type Server struct {
	cfg          Config
	httpServer   *http.Server
	defraManager *defra.DockerManager
	defraClient  *defra.Client
	registry     *providers.Registry
	providers    generation.Providers
	logger       *slog.Logger

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu       sync.RWMutex
	running  bool
	services *svcctx.Services
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Memory keeps all documents in process. Nothing survives a restart.
	Memory bool
	// DefraURL uses an already running DefraDB instead of the managed container.
	DefraURL string
	// DefraDataPath is the path to persist DefraDB data
	DefraDataPath string
	// DefraConfig holds DefraDB container settings
	DefraConfig defra.DockerConfig
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the reel home directory; exports are saved under it when set
	Home *home.Dir
	// Providers overrides the config-driven provider lookup
	Providers generation.Providers
	// Sleeper overrides the poller's wait, for tests
	Sleeper generation.Sleeper
	// SwaggerSpecPath is the generated OpenAPI spec served at /swagger.json
	SwaggerSpecPath string
	// WriteTimeout bounds non-generation responses (default 15m)
	WriteTimeout time.Duration
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
	}

	if !cfg.Memory && cfg.DefraURL == "" {
		if cfg.DefraDataPath != "" {
			cfg.DefraConfig.DataPath = cfg.DefraDataPath
		}
		mgr, err := defra.NewDockerManager(cfg.DefraConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create defra manager: %w", err)
		}
		s.defraManager = mgr
	}

	// Create provider registry
	s.registry = providers.NewRegistry()
	s.registry.SetLogger(cfg.Logger)
	s.registry.Reload(s.config().ToProviderRegistryConfig())

	s.providers = cfg.Providers
	if s.providers == nil {
		s.providers = &registryProviders{registry: s.registry, config: s.config, logger: cfg.Logger}
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	s.endpointRegistry.Register(endpoints.All(endpoints.Config{
		DefraManager:    s.defraManager,
		SwaggerSpecPath: cfg.SwaggerSpecPath,
	})...)

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// config returns the active configuration, or the defaults when the server
// runs without a config manager.
func (s *Server) config() *config.Config {
	if s.cfg.ConfigManager != nil {
		return s.cfg.ConfigManager.Get()
	}
	return config.DefaultConfig()
}

// Start opens the store, starts the HTTP server and blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.init(ctx); err != nil {
		_ = s.shutdown()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// init opens the document store and builds the services every request sees.
func (s *Server) init(ctx context.Context) error {
	st, err := s.openStore(ctx)
	if err != nil {
		return err
	}

	cfg := s.config()
	gen := generation.NewService(generation.Config{
		Store:            st,
		Providers:        s.providers,
		Policy:           cfg.GenerationPolicy(),
		Sleeper:          s.cfg.Sleeper,
		Tracker:          generation.NewTracker(cfg.JobTTL()),
		ThrottleStory:    cfg.Generation.ThrottleStory,
		BatchConcurrency: cfg.Generation.BatchConcurrency,
		Logger:           s.logger,
	})

	if s.cfg.ConfigManager != nil {
		s.cfg.ConfigManager.OnChange(func(c *config.Config) {
			s.registry.Reload(c.ToProviderRegistryConfig())
			gen.Reconfigure(c.GenerationPolicy(), c.Generation.ThrottleStory, c.Generation.BatchConcurrency)
			s.logger.Info("configuration reloaded", "poll_interval", c.Generation.PollInterval,
				"max_attempts", c.Generation.MaxAttempts)
		})
	}

	s.mu.Lock()
	s.services = &svcctx.Services{
		DefraClient: s.defraClient,
		Store:       st,
		Registry:    s.registry,
		Generation:  gen,
		Config:      s.cfg.ConfigManager,
		Fetcher:     export.NewHTTPFetcher(0),
		Logger:      s.logger,
		Home:        s.cfg.Home,
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) openStore(ctx context.Context) (store.Store, error) {
	if s.cfg.Memory {
		s.logger.Warn("using in-memory store; data is lost on shutdown")
		return store.NewMemoryStore(), nil
	}

	url := s.cfg.DefraURL
	if s.defraManager != nil {
		s.logger.Info("starting DefraDB")
		if err := s.defraManager.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start DefraDB: %w", err)
		}
		url = s.defraManager.URL()
	}

	s.defraClient = defra.NewClient(url)
	if err := s.defraClient.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("DefraDB health check failed: %w", err)
	}
	s.logger.Info("DefraDB is ready", "url", url)

	s.logger.Info("initializing schemas")
	if _, err := schema.Initialize(ctx, s.defraClient, s.logger); err != nil {
		return nil, fmt.Errorf("schema initialization failed: %w", err)
	}

	return store.NewDefraStore(s.defraClient, s.logger), nil
}

// shutdown performs graceful shutdown of the HTTP server and any DefraDB
// container the server started.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.defraManager != nil {
		s.logger.Info("stopping DefraDB")
		if err := s.defraManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("DefraDB stop error", "error", err)
		}
		if err := s.defraManager.Close(); err != nil {
			s.logger.Error("DefraDB manager close error", "error", err)
		}
	}

	s.mu.Lock()
	s.running = false
	s.services = nil
	s.mu.Unlock()
	s.logger.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Endpoints returns the endpoint registry, which also builds the CLI tree.
func (s *Server) Endpoints() *api.Registry {
	return s.endpointRegistry
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) currentServices() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc := s.currentServices(); svc != nil {
			ctx = svcctx.WithServices(ctx, svc)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store and services are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.currentServices() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
