// Package cli implements the catalogctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/catalogsync"
	"github.com/guanabara/catalog-sync/internal/shared"
	"github.com/guanabara/catalog-sync/jobs"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitInProgress = 2
	ExitWarnings   = 10
)

// Syncer runs and reports catalog syncs.
type Syncer interface {
	Run(ctx context.Context, trigger string) (catalogsync.Result, error)
	Status(ctx context.Context) (catalogsync.Status, error)
}

// Enqueuer queues a sync on the worker.
type Enqueuer interface {
	EnqueueCatalogSync(ctx context.Context, trigger, requestedBy string) (string, error)
}

// QueueFunc reports the default queue state.
type QueueFunc func(ctx context.Context) (jobs.QueueStats, error)

// SyncCLI wires the operator commands. Unset dependencies make the matching
// command fail with a usage error.
type SyncCLI struct {
	Syncer   Syncer
	Enqueuer Enqueuer
	Queue    QueueFunc
}

// Options are the flags shared by every command.
type Options struct {
	JSONOutput  bool
	RequestedBy string
	Stdout      io.Writer
	Stderr      io.Writer
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// RunCommand performs one sync inline. Exit code 10 means the catalog was
// written but some collections degraded.
func (c *SyncCLI) RunCommand(ctx context.Context, opts Options) int {
	opts.defaults()
	if c == nil || c.Syncer == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "run: sync service not configured")
		return ExitError
	}
	res, err := c.Syncer.Run(ctx, catalogsync.TriggerCLI)
	if err != nil {
		if errors.Is(err, shared.ErrSyncInProgress) {
			_, _ = fmt.Fprintln(opts.Stderr, "run: a sync is already in progress")
			return ExitInProgress
		}
		_, _ = fmt.Fprintf(opts.Stderr, "run: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(res); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "run: encode json: %v\n", err)
			return ExitError
		}
	} else {
		renderResult(opts.Stdout, res)
	}
	if len(res.Warnings) > 0 {
		return ExitWarnings
	}
	return ExitOK
}

// EnqueueCommand hands a sync to the background worker.
func (c *SyncCLI) EnqueueCommand(ctx context.Context, opts Options) int {
	opts.defaults()
	if c == nil || c.Enqueuer == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "enqueue: job client not configured")
		return ExitError
	}
	requestedBy := opts.RequestedBy
	if requestedBy == "" {
		requestedBy = "catalogctl"
	}
	taskID, err := c.Enqueuer.EnqueueCatalogSync(ctx, catalogsync.TriggerCLI, requestedBy)
	if err != nil {
		if errors.Is(err, shared.ErrSyncInProgress) {
			_, _ = fmt.Fprintln(opts.Stderr, "enqueue: a sync is already queued")
			return ExitInProgress
		}
		_, _ = fmt.Fprintf(opts.Stderr, "enqueue: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		_ = json.NewEncoder(opts.Stdout).Encode(map[string]string{"taskId": taskID, "status": "queued"})
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "queued sync task %s\n", taskID)
	}
	return ExitOK
}

// QueueCommand prints the default queue counters.
func (c *SyncCLI) QueueCommand(ctx context.Context, opts Options) int {
	opts.defaults()
	if c == nil || c.Queue == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "queue: inspector not configured")
		return ExitError
	}
	stats, err := c.Queue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "queue: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		_ = json.NewEncoder(opts.Stdout).Encode(stats)
		return ExitOK
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue %s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return ExitOK
}

// StatusCommand prints the last sync summary.
func (c *SyncCLI) StatusCommand(ctx context.Context, opts Options) int {
	opts.defaults()
	if c == nil || c.Syncer == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "status: sync service not configured")
		return ExitError
	}
	st, err := c.Syncer.Status(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "status: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		_ = json.NewEncoder(opts.Stdout).Encode(st)
		return ExitOK
	}
	if st.LastSync == nil {
		_, _ = fmt.Fprintln(opts.Stdout, "no sync recorded yet")
		return ExitOK
	}
	renderSummary(opts.Stdout, *st.LastSync)
	if st.Running {
		_, _ = fmt.Fprintln(opts.Stdout, "a sync is running now")
	}
	return ExitOK
}

func renderResult(w io.Writer, res catalogsync.Result) {
	_, _ = fmt.Fprintf(w, "sync %s %s in %dms\n", res.RunID, res.Status, res.DurationMillis)
	renderTotals(w, res.Totals)
	_, _ = fmt.Fprintf(w, "  preserved images: %d\n", res.PreservedImages)
	if res.ProductsTruncated {
		_, _ = fmt.Fprintln(w, "  products truncated: yes")
	}
	for _, warning := range res.Warnings {
		_, _ = fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

func renderSummary(w io.Writer, s catalog.Summary) {
	_, _ = fmt.Fprintf(w, "last sync %s at %s (%s)\n", s.RunID, s.LastSync.Format("2006-01-02 15:04:05 MST"), s.Trigger)
	renderTotals(w, s.Totals)
	_, _ = fmt.Fprintf(w, "  preserved images: %d\n", s.PreservedImages)
	for _, warning := range s.Warnings {
		_, _ = fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

func renderTotals(w io.Writer, t catalog.Totals) {
	_, _ = fmt.Fprintf(w, "  products=%d prices=%d sections=%d brands=%d genres=%d groups=%d\n",
		t.Products, t.Prices, t.Sections, t.Brands, t.Genres, t.Groups)
}
