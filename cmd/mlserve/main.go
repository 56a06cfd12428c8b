package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/vitalsense/mlserve/internal/config"
	"github.com/vitalsense/mlserve/internal/env"
	"github.com/vitalsense/mlserve/internal/envvar"
	"github.com/vitalsense/mlserve/internal/features"
	"github.com/vitalsense/mlserve/internal/inference"
	"github.com/vitalsense/mlserve/internal/logger"
	"github.com/vitalsense/mlserve/internal/persistence"
	"github.com/vitalsense/mlserve/internal/service"
	serverhttp "github.com/vitalsense/mlserve/internal/server/http"
)

func main() {
	var (
		flagHTTPPort   = flag.Int("http-port", config.DefaultHTTPPort, "HTTP port to listen on")
		flagConfigPath = flag.String("config", path.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", path.Join(config.DefaultConfigPath(), "mlserve.v1.schema.json"), "Path to schema file")
	)
	flag.Parse()

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(true),
			logger.WithLogFile("logs/mlserve.log"),
		),
	)

	schemas := features.NewSchemas(nil)

	watcher, err := config.NewWatcher(*flagConfigPath, *flagSchemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		schemas.Replace(cfg.Features)
		slog.Info("Feature schemas updated", "models", schemas.Names())
	})
	if err != nil {
		slog.Error("Failed to create config watcher", "error", err)
		return
	}

	cfg := watcher.Snapshot()
	schemas.Replace(cfg.Features)

	slog.Info("Config loaded successfully", "config", *flagConfigPath, "schema", *flagSchemaPath)

	manager, err := persistence.NewManager(cfg.BasePath(), cfg.BackupPath())
	if err != nil {
		slog.Error("Failed to initialize model storage", "error", err)
		return
	}

	pipeline := inference.NewPipeline(manager)
	analysis := service.NewAnalysis(pipeline, schemas)

	mux := http.NewServeMux()
	api := humago.NewWithPrefix(mux, "/api/v1", huma.DefaultConfig("mlserve", "1.0.0"))

	serverhttp.NewAnalysisHandler(api, analysis)
	serverhttp.NewRegistryHandler(api, manager)
	serverhttp.NewHealthHandler(api, manager, pipeline)

	port := *flagHTTPPort
	if raw := os.Getenv(envvar.MLServeServerHTTPPort); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			port = p
		} else {
			slog.Warn("Ignoring invalid HTTP port override", "value", raw)
		}
	}
	if cfg.Server.HTTPPort != 0 && port == config.DefaultHTTPPort {
		port = cfg.Server.HTTPPort
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr, "environment", environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}

	pipeline.Clear()
}
