package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"emptyfolder-cleaner/internal/api"
	"emptyfolder-cleaner/internal/database"
	"emptyfolder-cleaner/internal/metrics"
)

const (
	healthInterval = 30 * time.Second
	healthTimeout  = 5 * time.Second
)

func serveCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan session over HTTP",
		Long: `serve exposes scan, delete and delete-all over a JSON API and streams every
state change to WebSocket clients. Scans are confined to scan_paths when the
configuration lists any.`,
		Args:    cobra.NoArgs,
		GroupID: "service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.API.Listen = listen
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, closeDB, err := a.openHistory()
			if err != nil {
				return err
			}
			defer closeDB()

			stopMetrics := a.startMetrics(db)
			defer stopMetrics()

			sess, stop := a.runSession(ctx, a.sessionConfig(true), a.newCleaner(db, false))
			defer stop()

			var history api.History
			if db != nil {
				history = db
			}
			srv := api.NewServer(a.cfg.API, sess, history, a.logger)
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "API listen address (overrides api.listen)")
	return cmd
}

// startMetrics serves /metrics, /health and /trigger when a Prometheus port
// is configured, with health checks for the database and every scan root.
func (a *app) startMetrics(db *database.DeletionDB) func() {
	if a.cfg.Prometheus.Port <= 0 {
		return func() {}
	}

	hc := metrics.NewHealthChecker(healthInterval)
	if db != nil {
		hc.RegisterComponent("database", db.Ping, healthTimeout)
	}
	for _, root := range a.cfg.ScanPaths {
		hc.RegisterComponent("root:"+root, func() error {
			_, err := os.Stat(root)
			return err
		}, a.cfg.NFSTimeoutDuration())
	}
	hc.Start()
	metrics.SetHealthChecker(hc)
	metrics.StartServer(a.cfg.PrometheusAddress(), a.logger)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		metrics.Shutdown(ctx, a.logger)
	}
}
