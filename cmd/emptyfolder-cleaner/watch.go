package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"emptyfolder-cleaner/internal/exitcodes"
	"emptyfolder-cleaner/internal/metrics"
	"emptyfolder-cleaner/internal/scheduler"
)

func watchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		once     bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically clean every configured scan path",
		Long: `watch scans each of scan_paths on a fixed interval and deletes the empty
hierarchies it finds. A POST to the metrics server's /trigger starts a cycle
immediately.`,
		Args:    cobra.NoArgs,
		GroupID: "service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("interval") {
				if err := a.cfg.SetInterval(interval); err != nil {
					return withCode(exitcodes.InvalidConfig, err)
				}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, closeDB, err := a.openHistory()
			if err != nil {
				return err
			}
			defer closeDB()

			sched, err := scheduler.New(a.cfg, a.newCleaner(db, dryRun), a.logger)
			if err != nil {
				return withCode(exitcodes.InvalidConfig, err)
			}

			if once {
				results, err := sched.RunOnce(ctx)
				if isLocked(err) {
					return withCode(exitcodes.RuntimeError, fmt.Errorf("another batch is running: %w", err))
				}
				return reportCycle(cmd, results, err)
			}

			metrics.SetTriggerChannel(sched.Trigger())
			stopMetrics := a.startMetrics(db)
			defer stopMetrics()

			a.logger.Info("Watching scan paths", "roots", a.cfg.ScanPaths, "interval", a.cfg.Interval().String())
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.logger.Info("Watcher stopped")
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "time between cycles (overrides interval_minutes)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	return cmd
}

func reportCycle(cmd *cobra.Command, results []scheduler.RootResult, err error) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		switch {
		case r.Skipped != "":
			fmt.Fprintf(out, "%s: skipped (%s)\n", r.Root, r.Skipped)
		case r.Err != nil:
			fmt.Fprintf(out, "%s: %v\n", r.Root, r.Err)
		default:
			fmt.Fprintf(out, "%s: %d found, %d deleted, %d failed\n", r.Root, r.Found, r.Report.Deleted, r.Report.Failed)
		}
		failed += r.Report.Failed
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return withCode(exitcodes.PartialFailure, fmt.Errorf("%d folder(s) could not be deleted", failed))
	}
	return nil
}
