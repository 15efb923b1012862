// Package main is the CLI entry point for emptyfolder-cleaner.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"emptyfolder-cleaner/internal/cleanup"
	"emptyfolder-cleaner/internal/config"
	"emptyfolder-cleaner/internal/database"
	"emptyfolder-cleaner/internal/exitcodes"
	"emptyfolder-cleaner/internal/fsops"
	"emptyfolder-cleaner/internal/limiter"
	"emptyfolder-cleaner/internal/lock"
	"emptyfolder-cleaner/internal/logging"
	"emptyfolder-cleaner/internal/metrics"
	"emptyfolder-cleaner/internal/scan"
	"emptyfolder-cleaner/internal/session"
)

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	cfgFile string
	verbose bool
	quiet   bool

	cfg    *config.Config
	logger *logging.Logger
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "emptyfolder-cleaner",
		Short: "Find and remove empty folder hierarchies",
		Long: `emptyfolder-cleaner scans a directory tree for folders that hold nothing
but other empty folders and removes them, retrying with elevated privileges
when the OS refuses.`,
		SilenceUsage: true,
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup()
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	}

	root.PersistentFlags().
		StringVarP(&a.cfgFile, "config", "c", config.DefaultPath, "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "only log warnings and errors")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddGroup(
		&cobra.Group{ID: "interactive", Title: "Interactive:"},
		&cobra.Group{ID: "service", Title: "Service:"},
	)

	root.AddCommand(scanCmd(a))
	root.AddCommand(cleanCmd(a))
	root.AddCommand(deleteCmd(a))
	root.AddCommand(serveCmd(a))
	root.AddCommand(watchCmd(a))

	return root
}

func (a *app) setup() error {
	cfg, err := config.LoadOrDefault(a.cfgFile)
	if err != nil {
		return withCode(exitcodes.InvalidConfig, err)
	}
	switch {
	case a.verbose:
		cfg.Logging.Level = "debug"
	case a.quiet:
		cfg.Logging.Level = "warn"
	}

	logger, err := logging.NewWithConfig(cfg)
	if err != nil {
		return withCode(exitcodes.InvalidConfig, err)
	}

	metrics.Init()
	a.cfg = cfg
	a.logger = logger
	return nil
}

// exitCode maps a command error onto the documented exit codes.
func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, cleanup.ErrUnsafePath):
		return exitcodes.SafetyViolation
	case errors.Is(err, cleanup.ErrPermissionDenied), errors.Is(err, cleanup.ErrElevationFailed):
		return exitcodes.PermissionDenied
	default:
		return exitcodes.RuntimeError
	}
}

// scanOptions leaves Throttler unset; callers attach a limiter bound to
// their own context.
func (a *app) scanOptions() scan.Options {
	return scan.Options{
		IncludeHidden:    a.cfg.IncludeHidden(),
		IncludeRoot:      a.cfg.Scan.IncludeRoot,
		BundleExtensions: a.cfg.Scan.BundleExtensions,
	}
}

// sessionConfig builds the session settings. Only the API server confines
// scans to the configured scan_paths; a root named on the command line is
// the operator's choice.
func (a *app) sessionConfig(confine bool) session.Config {
	var allowed []string
	if confine {
		allowed = a.cfg.ScanPaths
	}
	return session.Config{
		ScanOptions:    a.scanOptions(),
		Limiter:        limiter.NewDirLimiter(a.cfg.Scan.MaxDirsPerSecond),
		AllowedRoots:   allowed,
		ProtectedPaths: a.cfg.Safety.ProtectedPaths,
		NFSTimeout:     a.cfg.NFSTimeoutDuration(),
		LockFile:       a.cfg.LockFile,
		Metrics:        metrics.ScanRecorder{},
	}
}

// openHistory opens the deletion database when one is configured. The
// returned close func is always safe to call.
func (a *app) openHistory() (*database.DeletionDB, func(), error) {
	if a.cfg.DatabasePath == "" {
		return nil, func() {}, nil
	}
	db, err := database.NewDeletionDB(a.cfg.DatabasePath)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open deletion database: %w", err)
	}
	return db, func() {
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}, nil
}

// newCleaner builds the deletion engine. It is scoped to a root and given
// a validator by whoever runs it.
func (a *app) newCleaner(db *database.DeletionDB, dryRun bool) *cleanup.Cleaner {
	var history cleanup.History
	if db != nil {
		history = db
	}

	c := cleanup.NewCleaner(a.logger, nil, dryRun || a.cfg.DryRun, history)
	c.SetMetrics(metrics.Recorder{})

	elevator, err := fsops.NewCommandElevator(a.cfg.Elevation.Command, a.cfg.ElevationTimeout(), a.logger)
	if err != nil {
		// Without a usable helper, permission failures are simply reported.
		a.logger.Warn("Elevation unavailable", "error", err)
		return c
	}
	c.SetElevator(elevator)
	return c
}

// runSession starts a session for one command and stops it when ctx ends.
func (a *app) runSession(ctx context.Context, cfg session.Config, cleaner *cleanup.Cleaner) (*session.Session, func()) {
	sess := session.New(cfg, cleaner, a.logger)
	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := sess.Run(ctx); err != nil {
			a.logger.Error("Session stopped", "error", err)
		}
	}()
	return sess, func() {
		cancel()
		<-stopped
	}
}

func isLocked(err error) bool {
	return errors.Is(err, lock.ErrLocked)
}
