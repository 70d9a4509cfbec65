package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-events/pkg/simpleevents/api"
	"github.com/tendant/simple-events/pkg/simpleevents/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    cfg.IsProduction(),
	}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx := context.Background()
	rt, err := cfg.Build(ctx, logger, reg)
	if err != nil {
		slog.Error("Failed to build service", "error", err)
		os.Exit(1)
	}
	if err := rt.Prepare(ctx); err != nil {
		slog.Error("Failed to prepare datastore", "error", err)
		rt.Close(ctx)
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{
		Service:   rt.Service,
		BlobStore: rt.BlobStore,
		Signer:    rt.Signer,
		Upload: api.UploadPolicy{
			MaxFileSize:  cfg.MaxFileSize,
			AllowedTypes: cfg.AllowedFileTypes,
		},
		LinkTTL:        cfg.SignedURLTTL(),
		Logger:         logger,
		Metrics:        rt.Metrics.Middleware,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		database, _ := cfg.DatabaseKind()
		slog.Info("Starting server",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"database", database,
			"storage", cfg.StorageURL,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := rt.Close(shutdownCtx); err != nil {
		slog.Error("Failed to close datastore", "error", err)
	}

	slog.Info("Server exited")
}
