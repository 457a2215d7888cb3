package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/guanabara/catalog-sync/cmd/catalogctl/cli"
	"github.com/guanabara/catalog-sync/internal/app"
	"github.com/guanabara/catalog-sync/jobs"
)

const usage = `usage: catalogctl <command> [flags]

commands:
  run      run one sync now and print the result
  enqueue  queue a sync on the worker
  queue    show the job queue counters
  status   show the last sync summary
`

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitError
	}
	command := args[0]
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOutput := fs.Bool("json", false, "print JSON")
	requestedBy := fs.String("by", "", "operator name recorded on queued syncs")
	if err := fs.Parse(args[1:]); err != nil {
		return cli.ExitError
	}
	switch command {
	case "run", "enqueue", "queue", "status":
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return cli.ExitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return cli.ExitError
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	opts := cli.Options{JSONOutput: *jsonOutput, RequestedBy: *requestedBy, Stdout: stdout, Stderr: stderr}
	switch command {
	case "run", "status":
		deps, err := app.BuildDeps(ctx, cfg, logger)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "build dependencies: %v\n", err)
			return cli.ExitError
		}
		defer deps.Close()
		c := &cli.SyncCLI{Syncer: deps.Sync}
		if command == "run" {
			return c.RunCommand(ctx, opts)
		}
		return c.StatusCommand(ctx, opts)
	case "enqueue":
		client, err := jobs.NewClient(cfg.RedisOpts(), cfg.SyncLockTTL)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "job client: %v\n", err)
			return cli.ExitError
		}
		defer client.Close()
		return (&cli.SyncCLI{Enqueuer: client}).EnqueueCommand(ctx, opts)
	default:
		inspector := asynq.NewInspector(cfg.RedisOpts())
		defer inspector.Close()
		queue := func(context.Context) (jobs.QueueStats, error) {
			return jobs.InspectQueue(inspector)
		}
		return (&cli.SyncCLI{Queue: queue}).QueueCommand(ctx, opts)
	}
}
