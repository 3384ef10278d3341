// Package main is the entry point for the relay server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelierhq/relay"
	"github.com/atelierhq/relay/internal/api"
	"github.com/atelierhq/relay/internal/config"
	"github.com/atelierhq/relay/internal/metrics"
	"github.com/atelierhq/relay/internal/observability"
	"github.com/atelierhq/relay/internal/secret"
)

func main() {
	configPath := flag.String("config", "config/relay.yaml", "path to configuration file")
	flag.Parse()

	bootLogger := observability.NewLogger(observability.LoggerConfig{Level: "info"})

	cfgManager, err := config.NewManager(*configPath, bootLogger)
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("starting relay", "version", relay.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	secrets := secret.NewManager()
	secrets.Register("env", secret.NewCachedResolver(secret.NewEnvResolver(), 5*time.Minute))
	defer secrets.Close()

	client, err := buildClient(ctx, cfg, secrets, logger)
	if err != nil {
		logger.Error("failed to build relay client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	dispatcher := buildDispatcher(cfg, cfgManager, client, secrets, logger)

	if cfg.Probe.Enabled {
		buildProber(cfg, logger).Start(ctx)
	}

	handler := api.NewHandler(client, dispatcher, logger)

	mux := http.NewServeMux()
	handler.Register(mux)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	var httpHandler http.Handler = mux
	httpHandler = metrics.Middleware(httpHandler)
	httpHandler = observability.RequestIDMiddleware(httpHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	cfgManager.Close()
	logger.Info("server stopped")
}
