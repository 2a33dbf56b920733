package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/content-extractor/internal/app"
	"github.com/joseph-ayodele/content-extractor/internal/async"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/ingest"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
	"github.com/joseph-ayodele/content-extractor/internal/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("extractd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	sink, err := handoff(cfg, logger)
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg, logger, app.WithSink(sink))
	if err != nil {
		return err
	}
	defer a.Close()

	queue := async.NewFromConfig(a.Processor, cfg, logger)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		queue.Shutdown(sctx)
	}()

	if cfg.Server.InboxDir != "" {
		ing := ingest.NewFSIngestor(queue, logger)
		go func() {
			err := ingest.Watch(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Server.InboxDir},
				InitialScan: true,
				Debounce:    500 * time.Millisecond,
				Logger:      logger,
			}, ing)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox watcher stopped", "dir", cfg.Server.InboxDir, "error", err)
			}
		}()
		logger.Info("inbox watching", "dir", cfg.Server.InboxDir)
	}

	logger.Info("extractd starting",
		"addr", cfg.Server.GRPCAddr,
		"workers", cfg.Worker.Workers,
		"queue_size", cfg.Worker.QueueSize,
		"outbox", cfg.Server.OutboxDir,
	)
	return server.ListenAndServe(ctx, cfg.Server.GRPCAddr, a.Registry, cfg.Server.HealthRefreshInterval, logger)
}

// handoff writes results to OUTBOX_DIR when set; otherwise outcomes are only
// logged.
func handoff(cfg *common.Config, logger *slog.Logger) (pipeline.Sink, error) {
	if cfg.Server.OutboxDir != "" {
		return pipeline.NewOutbox(cfg.Server.OutboxDir, logger)
	}
	return pipeline.SinkFunc(func(_ context.Context, out pipeline.Outcome) error {
		logger.Info("extractd.handoff", "job", out.Summary())
		return nil
	}), nil
}
