package synchttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/guanabara/catalog-sync/internal/catalogsync"
	"github.com/guanabara/catalog-sync/internal/platform/httpx"
	"github.com/guanabara/catalog-sync/internal/shared"
)

const maxHistory = 50

// Syncer runs and reports catalog syncs.
type Syncer interface {
	Run(ctx context.Context, trigger string) (catalogsync.Result, error)
	Status(ctx context.Context) (catalogsync.Status, error)
	History(ctx context.Context, limit int) ([]catalogsync.Result, error)
}

// Enqueuer schedules a sync on the background worker.
type Enqueuer interface {
	EnqueueCatalogSync(ctx context.Context, trigger, requestedBy string) (string, error)
}

// Handler serves the sync endpoints.
type Handler struct {
	logger   *slog.Logger
	syncer   Syncer
	enqueuer Enqueuer
	guard    *shared.AdminGuard
	timeout  time.Duration
	status   singleflight.Group
}

// NewHandler builds the sync handler. enqueuer may be nil, in which case
// async requests run inline.
func NewHandler(logger *slog.Logger, syncer Syncer, enqueuer Enqueuer, guard *shared.AdminGuard, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Handler{
		logger:   logger,
		syncer:   syncer,
		enqueuer: enqueuer,
		guard:    guard,
		timeout:  timeout,
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && h.enqueuer != nil {
		h.handleEnqueue(w, r)
		return
	}

	// Detached from the client; a disconnect does not abort the run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	res, err := h.syncer.Run(ctx, catalogsync.TriggerManual)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, res)
	case errors.Is(err, shared.ErrSyncInProgress):
		w.Header().Set("Retry-After", "60")
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, catalogsync.ErrNoProducts):
		h.logger.Warn("sync fetched no products", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
	default:
		h.logger.Error("sync failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Sync Failed", err.Error())
	}
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.enqueuer.EnqueueCatalogSync(r.Context(), catalogsync.TriggerManual, r.RemoteAddr)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": taskID, "status": "queued"})
	case errors.Is(err, shared.ErrSyncInProgress):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	default:
		h.logger.Error("enqueue sync", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ch := h.status.DoChan("status", func() (any, error) {
		return h.syncer.Status(context.WithoutCancel(r.Context()))
	})
	select {
	case <-r.Context().Done():
		return
	case res := <-ch:
		if res.Err != nil {
			h.logger.Error("sync status", slog.Any("error", res.Err))
			httpx.RespondError(w, res.Err)
			return
		}
		httpx.JSON(w, http.StatusOK, res.Val)
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := maxHistory
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: limit must be a positive integer", httpx.ErrValidation))
			return
		}
		if v < limit {
			limit = v
		}
	}
	runs, err := h.syncer.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("sync history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}
