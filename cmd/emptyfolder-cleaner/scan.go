package main

import (
	"github.com/spf13/cobra"

	"emptyfolder-cleaner/internal/limiter"
	"emptyfolder-cleaner/internal/safety"
	"emptyfolder-cleaner/internal/scan"
)

func scanCmd(a *app) *cobra.Command {
	var (
		asJSON       bool
		includeRoot  bool
		ignoreHidden bool
	)

	cmd := &cobra.Command{
		Use:     "scan <path>",
		Short:   "List empty folder hierarchies without deleting anything",
		Args:    cobra.ExactArgs(1),
		GroupID: "interactive",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := safety.NormalizePath(args[0])
			if err != nil {
				return err
			}

			opts := a.scanOptions()
			if cmd.Flags().Changed("include-root") {
				opts.IncludeRoot = includeRoot
			}
			if ignoreHidden {
				opts.IncludeHidden = false
			}
			if l := limiter.NewDirLimiter(a.cfg.Scan.MaxDirsPerSecond); l != nil {
				opts.Throttler = l.WithContext(cmd.Context())
			}

			sc := scan.NewScanner(opts, a.logger)
			hs, err := sc.Scan(cmd.Context(), root)
			if err != nil {
				return err
			}
			return printScan(cmd.OutOrStdout(), root, hs, sc.LastStats(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&includeRoot, "include-root", false, "report the scan root itself when it is empty")
	cmd.Flags().BoolVar(&ignoreHidden, "ignore-hidden", false, "treat folders holding only hidden entries as empty")
	return cmd
}
