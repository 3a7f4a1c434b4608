package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/pickem/internal/metrics"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Run executes job on the standard cron expression expr until ctx is done.
// A run still in flight when the next tick fires causes that tick to be
// skipped. Run returns after the last in-flight run finishes.
func Run(ctx context.Context, expr string, job Job, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(expr, func() { runOnce(ctx, job, logger) }); err != nil {
		return fmt.Errorf("scheduler: add %q: %w", expr, err)
	}

	logger.Info("scheduler started", "cron", expr)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
	return nil
}

func runOnce(ctx context.Context, job Job, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	metrics.IncRefreshRunning()
	defer metrics.DecRefreshRunning()

	if err := job(ctx); err != nil {
		metrics.IncRefreshTotal("error")
		logger.Error("scheduled run failed", "error", err)
		return
	}
	metrics.IncRefreshTotal("ok")
	logger.Info("scheduled run finished")
}
