package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sullysaurus/venues/internal/artifactstore"
	"github.com/sullysaurus/venues/internal/computeclient"
	"github.com/sullysaurus/venues/internal/config"
	"github.com/sullysaurus/venues/internal/httpapi"
	"github.com/sullysaurus/venues/internal/logx"
	"github.com/sullysaurus/venues/internal/orchestrator"
	"github.com/sullysaurus/venues/internal/promptenrich"
	"github.com/sullysaurus/venues/internal/runstore"
)

func main() {
	cfg := config.Load()
	logger := logx.Setup(cfg.LogLevel, cfg.LogPretty)

	logger.Info().Str("port", cfg.Port).Msg("starting venue pipeline orchestrator")

	var remote artifactstore.Backend
	if cfg.ArtifactRemoteBaseURL != "" {
		remote = artifactstore.NewHTTPRemote(cfg.ArtifactRemoteBaseURL)
	}
	local := artifactstore.NewLocalDisk(cfg.ArtifactLocalDir)
	store := artifactstore.New(remote, local)
	store.OnFallback(func(key string, err error) {
		logger.Warn().Str("key", key).Err(err).Msg("remote artifact store unavailable, using local disk")
	})

	var runs runstore.Store
	if cfg.DatabaseDSN != "" {
		bunStore := runstore.NewBunStore(cfg.DatabaseDSN)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := bunStore.InitSchema(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to initialize run registry schema")
			cancel()
			os.Exit(1)
		}
		cancel()
		runs = bunStore
		logger.Info().Msg("using postgres run registry")
	} else {
		runs = runstore.NewMemoryStore()
		logger.Info().Msg("using in-memory run registry (set DATABASE_DSN for durability across restarts)")
	}

	compute := computeclient.NewHTTPClient(cfg.ComputeBaseURL, cfg.ComputeTimeout)

	var enricher *promptenrich.Enricher
	if cfg.OpenAIAPIKey != "" {
		enricher = promptenrich.New(cfg.OpenAIAPIKey)
	}

	orch := orchestrator.New(store, compute, runs, enricher, cfg.MaxParallelSeats)
	api := httpapi.NewServer(orch, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ComputeTimeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	logger.Info().Msg("server exited gracefully")
}
