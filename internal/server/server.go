// Package server is the composition root: it builds the adapter set from the
// configured credentials, loads the model registry, wires the routes and runs
// the HTTP front.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ollama-bridge/internal/config"
	"ollama-bridge/internal/handlers"
	"ollama-bridge/internal/middleware"
	"ollama-bridge/internal/providers"
	"ollama-bridge/internal/registry"
)

type Server struct {
	cfg    *config.Config
	api    *handlers.API
	logger *slog.Logger
	server *http.Server
}

// New validates the configuration, builds the active adapter set and loads
// the registry. Both failures here are startup-fatal: the process must not
// serve with no credentials or a malformed model table.
func New(cfg *config.Config, logger *slog.Logger, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adapters := buildAdapters(cfg, logger)

	reg, err := registry.Load(cfg.ModelsFile, adapters)
	if err != nil {
		return nil, err
	}

	logger.Info("registry loaded",
		"models", len(reg.Entries()),
		"active_models", len(reg.Active()),
		"providers", adapters.Kinds(),
	)

	return &Server{
		cfg:    cfg,
		api:    handlers.NewAPI(reg, adapters, logger, version),
		logger: logger,
	}, nil
}

// buildAdapters activates one adapter per configured credential. A provider
// without a key is simply absent; its registry entries resolve to
// ProviderUnavailable at request time.
func buildAdapters(cfg *config.Config, logger *slog.Logger) providers.Set {
	set := providers.Set{}

	if cfg.OpenAIKey != "" {
		set[providers.KindOpenAI] = providers.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, logger)
	}

	if cfg.GeminiKey != "" {
		set[providers.KindGoogle] = providers.NewGemini(cfg.GeminiKey, cfg.GeminiBaseURL, logger)
	}

	if cfg.OpenRouterKey != "" {
		set[providers.KindOpenRouter] = providers.NewOpenRouter(cfg.OpenRouterKey, cfg.OpenRouterBaseURL, logger)
	}

	return set
}

// Handler assembles the full route table with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", s.api.Chat)
	mux.HandleFunc("/api/generate", s.api.Generate)
	mux.HandleFunc("/api/tags", s.api.Tags)
	mux.HandleFunc("/api/version", s.api.Version)
	mux.HandleFunc("/", s.api.Root)

	chain := middleware.New(
		middleware.NewRecoveryMiddleware(s.logger),
		middleware.NewCORSMiddleware(),
		middleware.NewLoggingMiddleware(s.logger),
	)

	return chain.Handler(mux)
}

// Start serves until SIGINT/SIGTERM, then drains with a shutdown deadline.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	s.logger.Info("starting server", "address", addr)

	errCh := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("server exited")

	return nil
}

// Stop shuts the server down out-of-band (used by tests and the stop path).
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
