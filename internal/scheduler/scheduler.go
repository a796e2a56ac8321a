package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"dirsweep/internal/metrics"
	"dirsweep/internal/sweep"
)

// Runner performs one sweep
type Runner interface {
	Run(ctx context.Context) ([]sweep.Result, error)
}

func RunOnce(ctx context.Context, runner Runner, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	if runner == nil {
		return errors.New("nil runner")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	start := time.Now()
	metrics.Init()
	metrics.RecordSweepRun()

	results, err := runner.Run(ctx)

	elapsed := time.Since(start).Seconds()
	metrics.SweepDuration.Observe(elapsed)
	metrics.SetHealthy(err == nil)

	files := 0
	for _, r := range results {
		files += r.Files
	}
	logger.Printf("cycle complete: targets=%d files_removed=%d duration=%.3fs", len(results), files, elapsed)
	return err
}

// Run sweeps immediately, then on every interval tick and every trigger until
// ctx is done. Cycle errors are logged, not returned.
func Run(ctx context.Context, runner Runner, interval time.Duration, trigger <-chan struct{}, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		return errors.New("interval must be positive")
	}

	if err := RunOnce(ctx, runner, logger); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Printf("error running cycle: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Println("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
		case <-trigger:
			logger.Println("sweep triggered on demand")
		}
		if err := RunOnce(ctx, runner, logger); err != nil {
			if ctx.Err() != nil {
				logger.Println("scheduler shutting down")
				return ctx.Err()
			}
			logger.Printf("error running cycle: %v", err)
		}
	}
}
