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

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/guanabara/catalog-sync/internal/app"
	cataloghttp "github.com/guanabara/catalog-sync/internal/catalog/http"
	synchttp "github.com/guanabara/catalog-sync/internal/catalogsync/http"
	"github.com/guanabara/catalog-sync/jobs"
)

func main() {
	_ = godotenv.Load()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	deps, err := app.BuildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("build dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Close()

	var (
		enqueuer  synchttp.Enqueuer
		inspector *asynq.Inspector
	)
	if deps.Redis != nil {
		jobClient, err := jobs.NewClient(cfg.RedisOpts(), cfg.SyncLockTTL)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		enqueuer = jobClient
		inspector = asynq.NewInspector(cfg.RedisOpts())
		defer func() {
			_ = inspector.Close()
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: cataloghttp.NewHandler(logger, deps.Reader, deps.Sync, deps.Guard),
		SyncHandler:    synchttp.NewHandler(logger, deps.Sync, enqueuer, deps.Guard, cfg.SyncTimeout),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        deps.Metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
