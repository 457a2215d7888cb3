package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/catalogsync"
	"github.com/guanabara/catalog-sync/internal/shared"
	"github.com/guanabara/catalog-sync/jobs"
)

type stubSyncer struct {
	result catalogsync.Result
	status catalogsync.Status
	err    error
}

func (s stubSyncer) Run(ctx context.Context, trigger string) (catalogsync.Result, error) {
	res := s.result
	res.Trigger = trigger
	return res, s.err
}

func (s stubSyncer) Status(ctx context.Context) (catalogsync.Status, error) {
	return s.status, s.err
}

type stubEnqueuer struct {
	err         error
	requestedBy string
}

func (e *stubEnqueuer) EnqueueCatalogSync(ctx context.Context, trigger, requestedBy string) (string, error) {
	e.requestedBy = requestedBy
	return "task-9", e.err
}

func buffers() (*bytes.Buffer, *bytes.Buffer) {
	return new(bytes.Buffer), new(bytes.Buffer)
}

func TestRunCommandJSONSuccess(t *testing.T) {
	c := &SyncCLI{Syncer: stubSyncer{result: catalogsync.Result{
		RunID:  "run-1",
		Status: catalogsync.StatusSuccess,
		Totals: catalog.Totals{Products: 720},
	}}}
	stdout, stderr := buffers()

	code := c.RunCommand(context.Background(), Options{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code)
	require.Empty(t, stderr.String())

	var res catalogsync.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.Equal(t, 720, res.Totals.Products)
	require.Equal(t, catalogsync.TriggerCLI, res.Trigger)
}

func TestRunCommandWarningsExitCode(t *testing.T) {
	c := &SyncCLI{Syncer: stubSyncer{result: catalogsync.Result{
		RunID:    "run-2",
		Status:   catalogsync.StatusSuccess,
		Warnings: []string{"marcas: vendor returned an HTML login page"},
	}}}
	stdout, stderr := buffers()

	code := c.RunCommand(context.Background(), Options{Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitWarnings, code)
	require.Contains(t, stdout.String(), "warning: marcas")
}

func TestRunCommandErrors(t *testing.T) {
	stdout, stderr := buffers()
	c := &SyncCLI{Syncer: stubSyncer{err: shared.ErrSyncInProgress}}
	require.Equal(t, ExitInProgress, c.RunCommand(context.Background(), Options{Stdout: stdout, Stderr: stderr}))

	stderr.Reset()
	c = &SyncCLI{Syncer: stubSyncer{err: errors.New("save failed")}}
	require.Equal(t, ExitError, c.RunCommand(context.Background(), Options{Stdout: stdout, Stderr: stderr}))
	require.Contains(t, stderr.String(), "save failed")

	require.Equal(t, ExitError, (&SyncCLI{}).RunCommand(context.Background(), Options{Stdout: stdout, Stderr: stderr}))
}

func TestEnqueueCommand(t *testing.T) {
	enq := &stubEnqueuer{}
	stdout, stderr := buffers()

	code := (&SyncCLI{Enqueuer: enq}).EnqueueCommand(context.Background(), Options{Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code)
	require.Contains(t, stdout.String(), "task-9")
	require.Equal(t, "catalogctl", enq.requestedBy)

	enq.err = shared.ErrSyncInProgress
	code = (&SyncCLI{Enqueuer: enq}).EnqueueCommand(context.Background(), Options{RequestedBy: "ops", Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitInProgress, code)
	require.Equal(t, "ops", enq.requestedBy)
}

func TestQueueCommand(t *testing.T) {
	queue := func(context.Context) (jobs.QueueStats, error) {
		return jobs.QueueStats{Queue: jobs.QueueDefault, Pending: 2}, nil
	}
	stdout, stderr := buffers()

	code := (&SyncCLI{Queue: queue}).QueueCommand(context.Background(), Options{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code)
	var stats jobs.QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, 2, stats.Pending)
}

func TestStatusCommand(t *testing.T) {
	stdout, stderr := buffers()
	code := (&SyncCLI{Syncer: stubSyncer{}}).StatusCommand(context.Background(), Options{Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code)
	require.Contains(t, stdout.String(), "no sync recorded yet")

	stdout.Reset()
	last := &catalog.Summary{
		RunID:    "run-0",
		Trigger:  catalogsync.TriggerScheduled,
		LastSync: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
		Totals:   catalog.Totals{Products: 12},
	}
	code = (&SyncCLI{Syncer: stubSyncer{status: catalogsync.Status{Running: true, LastSync: last}}}).
		StatusCommand(context.Background(), Options{Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code)
	require.Contains(t, stdout.String(), "last sync run-0")
	require.Contains(t, stdout.String(), "products=12")
	require.Contains(t, stdout.String(), "a sync is running now")
}
