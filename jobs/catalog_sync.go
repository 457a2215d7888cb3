package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/guanabara/catalog-sync/internal/catalogsync"
	jobmetrics "github.com/guanabara/catalog-sync/internal/jobs"
	"github.com/guanabara/catalog-sync/internal/shared"
)

// taskMetricsJob labels queue task executions, which include skipped runs.
const taskMetricsJob = TaskCatalogSync + ":task"

// Syncer runs a catalog sync.
type Syncer interface {
	Run(ctx context.Context, trigger string) (catalogsync.Result, error)
}

// CatalogSyncJob executes queued and scheduled catalog syncs.
type CatalogSyncJob struct {
	Syncer  Syncer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogSyncJob wires dependencies for the sync handler.
func NewCatalogSyncJob(syncer Syncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogSyncJob {
	return &CatalogSyncJob{Syncer: syncer, Logger: logger, Metrics: metrics}
}

// Handle processes catalog sync tasks.
func (j *CatalogSyncJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Syncer == nil {
		return errors.New("catalog sync: handler not configured")
	}
	var payload CatalogSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Trigger == "" {
		payload.Trigger = catalogsync.TriggerScheduled
	}

	logger := j.logger().With(slog.String("trigger", payload.Trigger))
	if payload.RequestedBy != "" {
		logger = logger.With(slog.String("requested_by", payload.RequestedBy))
	}

	tracker := j.Metrics.Track(taskMetricsJob)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	res, err := j.Syncer.Run(ctx, payload.Trigger)
	switch {
	case err == nil:
		logger.Info("catalog sync job completed",
			slog.String("run_id", res.RunID),
			slog.Int("products", res.Totals.Products),
			slog.Int("warnings", len(res.Warnings)),
		)
		return nil
	case errors.Is(err, shared.ErrSyncInProgress):
		logger.Info("catalog sync already running, skipping")
		return nil
	default:
		logger.Error("catalog sync job failed", slog.Any("error", err))
		return errors.Join(err, asynq.SkipRetry)
	}
}

func (j *CatalogSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatalogSync))
	}
	return slog.Default().With(slog.String("job", TaskCatalogSync))
}
