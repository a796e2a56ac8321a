package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"dirsweep/internal/database"
	"dirsweep/internal/exitcodes"
	"dirsweep/internal/metrics"
	"dirsweep/internal/scheduler"
	"dirsweep/internal/sweep"
)

func (a *App) newRunCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep the configured targets once or on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSweep(cmd.Context(), once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit (ignores interval_minutes)")
	return cmd
}

func (a *App) runSweep(ctx context.Context, once bool) error {
	cfg, err := a.loadConfig(true)
	if err != nil {
		return err
	}
	logger := a.getLogger(cfg, true)
	defer a.closeLogger()
	logger.Printf("dirsweep %s starting, config %s, %d targets", a.version, a.configPath, len(cfg.Targets))

	metrics.Init()
	if cfg.Prometheus.Port > 0 {
		logger.Printf("Starting Prometheus metrics on %s", cfg.PrometheusAddress())
		metrics.StartServer(cfg.PrometheusAddress(), logger)
		defer metrics.Shutdown(context.Background(), logger)
	}

	var db *database.HistoryDB
	if cfg.DatabasePath != "" {
		logger.Printf("Opening sweep history: %s", cfg.DatabasePath)
		db, err = database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			return &ExitError{Code: exitcodes.RuntimeError, Message: "failed to open database", Err: err}
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
	}

	fsys, closeFS, err := a.openFileSystem(cfg)
	if err != nil {
		return err
	}
	defer closeFS()

	sweeper := sweep.New(cfg, fsys, newValidator(cfg, cfg.AllowedRoots), db, logger)

	if once || cfg.Interval() == 0 {
		if err := scheduler.RunOnce(ctx, sweeper, logger); err != nil {
			return sweepError(err)
		}
		logger.Println("Sweep completed successfully")
		return nil
	}

	trigger := make(chan struct{}, 1)
	metrics.SetTriggerChannel(trigger)
	defer metrics.SetTriggerChannel(nil)

	logger.Printf("Starting sweep scheduler, interval %s", cfg.Interval())
	err = scheduler.Run(ctx, sweeper, cfg.Interval(), trigger, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return &ExitError{Code: exitcodes.RuntimeError, Message: "scheduler failed", Err: err}
	}
	logger.Println("dirsweep stopped")
	return nil
}

// sweepError reports a safety violation only when no target failed otherwise
func sweepError(err error) error {
	if isOnlySafety(err) {
		return &ExitError{Code: exitcodes.SafetyViolation, Message: "sweep blocked by safety checks", Err: err}
	}
	return &ExitError{Code: exitcodes.RuntimeError, Message: "sweep failed", Err: err}
}

func isOnlySafety(err error) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return sweep.IsSafetyViolation(err)
	}
	for _, e := range joined.Unwrap() {
		if !isOnlySafety(e) {
			return false
		}
	}
	return true
}
