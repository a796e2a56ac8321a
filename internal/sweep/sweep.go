package sweep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"dirsweep/internal/config"
	"dirsweep/internal/database"
	"dirsweep/internal/fsutil"
	"dirsweep/internal/metrics"
	"dirsweep/internal/safety"
)

// Target outcomes reported to metrics
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Logger is the structured logging surface used by the sweeper
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// stdLogger adapts *log.Logger to Logger
type stdLogger struct {
	*log.Logger
}

func (l *stdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *stdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *stdLogger) logWithLevel(level, msg string, args ...interface{}) {
	parts := []interface{}{fmt.Sprintf("[%s]", level), msg}
	for i := 0; i+1 < len(args); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", args[i], args[i+1]))
	}
	if len(args)%2 == 1 {
		parts = append(parts, args[len(args)-1])
	}
	l.Logger.Println(parts...)
}

// Result is the outcome of one target
type Result struct {
	Target   config.Target
	Action   string
	Files    int
	Pruned   bool
	Duration time.Duration
	Err      error
}

// Sweeper deletes or cleans the configured targets
type Sweeper struct {
	logger    Logger
	fs        *fsutil.FileSystem
	validator *safety.Validator
	db        *database.HistoryDB // nil disables history
	cfg       *config.Config
}

// New creates a Sweeper. db may be nil.
func New(cfg *config.Config, fsys *fsutil.FileSystem, validator *safety.Validator, db *database.HistoryDB, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	metrics.Init()
	return &Sweeper{
		logger:    &stdLogger{Logger: logger},
		fs:        fsys,
		validator: validator,
		db:        db,
		cfg:       cfg,
	}
}

// Run processes every configured target. A failing target does not stop the
// others; the returned error joins every target failure.
func (s *Sweeper) Run(ctx context.Context) ([]Result, error) {
	runID := uuid.NewString()
	s.logger.Info("Starting sweep", "run_id", runID, "targets", len(s.cfg.Targets))

	results := make([]Result, 0, len(s.cfg.Targets))
	var errs []error
	var files int

	for _, target := range s.cfg.Targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := s.sweepTarget(ctx, target)
		results = append(results, res)
		files += res.Files
		s.record(runID, res)

		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Path, res.Err))
		}
	}

	s.logger.Info("Sweep complete",
		"run_id", runID,
		"targets", len(results),
		"errors", len(errs),
		"files_removed", files,
	)

	return results, errors.Join(errs...)
}

func (s *Sweeper) sweepTarget(ctx context.Context, target config.Target) Result {
	start := time.Now()
	res := Result{Target: target}

	if err := s.validator.CheckTarget(ctx, target, s.fs.GetLinkStat); err != nil {
		res.Action = database.ActionSkip
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	var err error
	switch target.Mode {
	case config.ModeClean:
		res.Action = database.ActionClean
		res.Files, err = s.fs.CleanDir(ctx, target.Path)
	default:
		res.Action = database.ActionDelete
		res.Files, err = s.fs.DeleteDir(ctx, target.Path, true)
	}

	if err != nil {
		res.Action = database.ActionError
		res.Err = err
	} else if target.PruneParents {
		if root, err := s.validator.PruneBound(target.Path, ""); err == nil {
			res.Pruned = s.fs.DeletePathIfEmptyWithin(ctx, target.Path, root)
		}
	}

	res.Duration = time.Since(start)
	return res
}

// record publishes a target outcome to metrics, history and the log
func (s *Sweeper) record(runID string, res Result) {
	outcome := OutcomeOK
	errMsg := ""
	switch res.Action {
	case database.ActionSkip:
		outcome = OutcomeSkipped
		errMsg = res.Err.Error()
		metrics.ErrorsTotal.Inc()
	case database.ActionError:
		outcome = OutcomeError
		errMsg = res.Err.Error()
		metrics.ErrorsTotal.Inc()
		s.logger.Error("Failed to sweep target", "path", res.Target.Path, "files_removed", res.Files, "error", res.Err)
	}
	metrics.RecordTarget(res.Target.Path, outcome, res.Files)

	s.logStructured(res, errMsg)

	if s.db == nil {
		return
	}
	err := s.db.RecordSweep(database.SweepRecord{
		RunID:        runID,
		Action:       res.Action,
		Path:         res.Target.Path,
		Mode:         res.Target.Mode,
		Backend:      s.cfg.Backend.Type,
		FilesRemoved: res.Files,
		Pruned:       res.Pruned,
		DurationMs:   res.Duration.Milliseconds(),
		ErrorMessage: errMsg,
	})
	if err != nil {
		s.logger.Error("Failed to record sweep to database", "error", err)
	}
}

// logStructured writes one line per target: timestamp, action, path, mode, files, pruned, reason
func (s *Sweeper) logStructured(res Result, reason string) {
	entry := fmt.Sprintf("[%s] %s path=%s mode=%s files=%d pruned=%t",
		time.Now().UTC().Format(time.RFC3339),
		res.Action,
		res.Target.Path,
		res.Target.Mode,
		res.Files,
		res.Pruned,
	)
	if reason != "" {
		entry += fmt.Sprintf(` reason="%s"`, strings.ReplaceAll(reason, `"`, `\"`))
	}
	s.logger.Info(entry)
}

// IsSafetyViolation reports whether err came from the safety validator
func IsSafetyViolation(err error) bool {
	return safety.IsViolation(err)
}
