package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"emptyfolder-cleaner/internal/exitcodes"
	"emptyfolder-cleaner/internal/safety"
	"emptyfolder-cleaner/internal/session"
)

func cleanCmd(a *app) *cobra.Command {
	var (
		elevate bool
		dryRun  bool
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "clean <path>",
		Short: "Scan a folder and delete every empty hierarchy found",
		Long: `clean scans <path>, lists the empty folder hierarchies it found and deletes
them after confirmation. Folders the OS refuses to delete are retried with the
configured elevation helper when --elevate is given.`,
		Args:    cobra.ExactArgs(1),
		GroupID: "interactive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			db, closeDB, err := a.openHistory()
			if err != nil {
				return err
			}
			defer closeDB()

			cleaner := a.newCleaner(db, dryRun)
			sess, stop := a.runSession(ctx, a.sessionConfig(false), cleaner)
			defer stop()

			st, err := scanAndWait(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if err := printScan(out, st.SelectedPath, st.EmptyFolders, *st.ScanStats, false); err != nil {
				return err
			}
			if len(st.EmptyFolders) == 0 {
				return nil
			}

			if !yes && !cleaner.DryRun() {
				ok, err := confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %d folder hierarchies?", len(st.EmptyFolders)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			report, err := sess.DeleteAll(ctx, elevate)
			if err != nil {
				if isLocked(err) {
					return withCode(exitcodes.RuntimeError, fmt.Errorf("another batch is running: %w", err))
				}
				return err
			}
			printReport(out, report, cleaner.DryRun())
			if report.Failed > 0 {
				return withCode(exitcodes.PartialFailure, errors.New(report.Summary()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&elevate, "elevate", false, "retry refused deletions with elevated privileges")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	var elevate bool

	cmd := &cobra.Command{
		Use:   "delete <dir>",
		Short: "Delete one empty folder hierarchy",
		Long: `delete removes <dir> and every folder beneath it, provided the whole tree
holds nothing but empty folders.`,
		Args:    cobra.ExactArgs(1),
		GroupID: "interactive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, err := safety.NormalizePath(args[0])
			if err != nil {
				return err
			}

			db, closeDB, err := a.openHistory()
			if err != nil {
				return err
			}
			defer closeDB()

			cleaner := a.newCleaner(db, false)
			sess, stop := a.runSession(ctx, a.sessionConfig(false), cleaner)
			defer stop()

			if _, err := scanAndWait(ctx, sess, filepath.Dir(target)); err != nil {
				return err
			}

			if err := sess.DeleteOne(ctx, target, elevate); err != nil {
				if errors.Is(err, session.ErrNotFound) {
					return fmt.Errorf("%s is not an empty folder hierarchy: %w", target, err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&elevate, "elevate", false, "retry with elevated privileges if the OS refuses")
	return cmd
}

// scanAndWait runs a scan in sess and returns the finished state.
func scanAndWait(ctx context.Context, sess *session.Session, root string) (session.State, error) {
	if err := sess.Scan(ctx, root); err != nil {
		return session.State{}, err
	}
	st, err := sess.AwaitIdle(ctx)
	if err != nil {
		return st, err
	}
	if st.LastError != "" {
		return st, errors.New(st.LastError)
	}
	return st, nil
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
