package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"dirsweep/internal/config"
	"dirsweep/internal/exitcodes"
	"dirsweep/internal/fsops"
	"dirsweep/internal/fsutil"
	"dirsweep/internal/limiter"
	"dirsweep/internal/logging"
	"dirsweep/internal/metrics"
	"dirsweep/internal/safety"
	"dirsweep/internal/sweep"
)

// App is the dependency container for all CLI commands.
type App struct {
	rootCmd    *cobra.Command
	version    string
	configPath string
	out        io.Writer
	logger     *log.Logger
	logCloser  io.Closer
}

// NewApp creates the root command and registers all subcommands.
func NewApp(version string) *App {
	app := &App{
		version: version,
		out:     os.Stdout,
	}

	root := &cobra.Command{
		Use:   "dirsweep",
		Short: "Idempotent recursive deletion of build and scratch directories",
		Long: "Deletes or empties directory trees on the local filesystem or over SFTP.\n" +
			"A path that is already gone counts as success.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "path to configuration file")

	root.AddCommand(
		app.newRunCmd(),
		app.newRmCmd(),
		app.newCleanCmd(),
		app.newPruneCmd(),
		app.newExistsCmd(),
		app.newStatCmd(),
		app.newHistoryCmd(),
		app.newVersionCmd(),
	)

	app.rootCmd = root
	return app
}

// Execute runs the root command.
func (a *App) Execute(ctx context.Context) error {
	return a.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides os.Args[1:], for tests.
func (a *App) SetArgs(args []string) {
	a.rootCmd.SetArgs(args)
}

// SetOutput redirects command output.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
	a.rootCmd.SetOut(w)
	a.rootCmd.SetErr(w)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "dirsweep %s\n", a.version)
		},
	}
}

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// loadConfig loads --config, or a local-backend default when it is unset
func (a *App) loadConfig(required bool) (*config.Config, error) {
	if a.configPath == "" {
		if required {
			return nil, &ExitError{Code: exitcodes.InvalidConfig, Message: "--config is required"}
		}
		return config.Default(), nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, &ExitError{Code: exitcodes.InvalidConfig, Message: "failed to load config", Err: err}
	}
	return cfg, nil
}

// closeLogger releases the log file opened by getLogger, if any
func (a *App) closeLogger() {
	if a.logCloser == nil {
		return
	}
	if err := a.logCloser.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
	a.logCloser = nil
	a.logger = nil
}

// getLogger returns the rotated file logger once a config is known
func (a *App) getLogger(cfg *config.Config, toFile bool) *log.Logger {
	if a.logger != nil {
		return a.logger
	}
	if toFile {
		a.logger, a.logCloser = logging.NewWithConfig(cfg)
	} else {
		a.logger = log.New(a.out, "", log.LstdFlags|log.Lmicroseconds)
	}
	return a.logger
}

// openFileSystem builds the FS stack for cfg: backend, rate limit,
// instrumentation, then the bounded deletion core. The returned close
// function releases the backend.
func (a *App) openFileSystem(cfg *config.Config) (*fsutil.FileSystem, func() error, error) {
	var base fsops.FS
	closeFn := func() error { return nil }

	switch cfg.Backend.Type {
	case config.BackendSFTP:
		s := cfg.Backend.SFTP
		remote, err := fsops.DialSFTP(fsops.SFTPOptions{
			Address:               s.Address,
			User:                  s.User,
			Password:              s.Password,
			PrivateKeyPath:        s.PrivateKeyPath,
			KnownHostsPath:        s.KnownHostsPath,
			InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
			Timeout:               cfg.SFTPTimeout(),
		})
		if err != nil {
			return nil, nil, &ExitError{Code: exitcodes.RuntimeError, Message: "failed to connect to sftp backend", Err: err}
		}
		base = remote
		closeFn = remote.Close
	default:
		base = fsops.OSFS{}
	}

	metrics.Init()
	fsys := limiter.NewFS(base, cfg.RateLimit.OpsPerSecond, cfg.RateLimit.Burst)
	fsys = metrics.InstrumentFS(fsys)

	return fsutil.New(fsys, fsutil.WithMaxInFlight(cfg.Concurrency.MaxInFlight)), closeFn, nil
}

// newValidator returns the safety validator matching the backend
func newValidator(cfg *config.Config, roots []string) *safety.Validator {
	if cfg.Backend.Type == config.BackendSFTP {
		return safety.NewRemoteValidator(roots, cfg.ProtectedPaths)
	}
	return safety.NewValidator(roots, cfg.ProtectedPaths)
}

// runtimeError maps an operation failure to its exit code
func runtimeError(msg string, err error) error {
	code := exitcodes.RuntimeError
	if sweep.IsSafetyViolation(err) {
		code = exitcodes.SafetyViolation
	}
	return &ExitError{Code: code, Message: msg, Err: err}
}

// ExitCode returns the process exit code for err
func ExitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitcodes.RuntimeError
}
