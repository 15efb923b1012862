package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emptyfolder-cleaner/internal/cleanup"
	"emptyfolder-cleaner/internal/config"
	"emptyfolder-cleaner/internal/disk"
	"emptyfolder-cleaner/internal/limiter"
	"emptyfolder-cleaner/internal/lock"
	"emptyfolder-cleaner/internal/metrics"
	"emptyfolder-cleaner/internal/safety"
	"emptyfolder-cleaner/internal/scan"
)

var errNilConfig = errors.New("nil config")

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// RootResult is the outcome of one scan-and-clean of a root.
type RootResult struct {
	Root    string
	Found   int
	Report  cleanup.Report
	Skipped string
	Err     error
}

// Scheduler runs scan-and-clean cycles over the configured roots.
// Init from the metrics package must have been called.
type Scheduler struct {
	cfg     *config.Config
	cleaner *cleanup.Cleaner
	logger  Logger
	limiter *limiter.DirLimiter
	trigger chan struct{}
}

// New creates a Scheduler. cleaner is scoped to each root before use.
func New(cfg *config.Config, cleaner *cleanup.Cleaner, logger Logger) (*Scheduler, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if err := cfg.RequireScanPaths(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:     cfg,
		cleaner: cleaner,
		logger:  logger,
		limiter: limiter.NewDirLimiter(cfg.Scan.MaxDirsPerSecond),
		trigger: make(chan struct{}, 1),
	}, nil
}

// Trigger returns the channel that starts an immediate cycle. It is handed
// to metrics.SetTriggerChannel for the /trigger endpoint.
func (s *Scheduler) Trigger() chan struct{} {
	return s.trigger
}

// RunOnce scans and cleans every configured root in order. One failing root
// does not stop the others; the first error is returned after all ran.
func (s *Scheduler) RunOnce(ctx context.Context) ([]RootResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	lk, err := lock.Acquire(s.cfg.LockFile)
	if err != nil {
		return nil, err
	}
	defer lk.Release()

	start := time.Now()
	results := make([]RootResult, 0, len(s.cfg.ScanPaths))
	var firstErr error
	for _, root := range s.cfg.ScanPaths {
		res := s.runRoot(ctx, root)
		results = append(results, res)
		if res.Err != nil && firstErr == nil {
			firstErr = res.Err
		}
	}

	deleted, failed := 0, 0
	for _, r := range results {
		deleted += r.Report.Deleted
		failed += r.Report.Failed
	}
	s.logger.Info("cycle complete",
		"roots", len(results),
		"deleted", deleted,
		"failed", failed,
		"duration", time.Since(start).String(),
	)
	return results, firstErr
}

func (s *Scheduler) runRoot(ctx context.Context, root string) RootResult {
	res := RootResult{Root: root}

	if s.cfg.NFSTimeout > 0 && disk.IsNFSStale(root, s.cfg.NFSTimeoutDuration()) {
		s.logger.Warn("skipping stale NFS root", "root", root)
		metrics.RecordNFSStale(root)
		metrics.RecordCycle(root, "skipped")
		res.Skipped = "nfs_stale"
		return res
	}

	opts := scan.Options{
		IncludeHidden:    s.cfg.IncludeHidden(),
		IncludeRoot:      s.cfg.Scan.IncludeRoot,
		BundleExtensions: s.cfg.Scan.BundleExtensions,
	}
	if s.limiter != nil {
		opts.Throttler = s.limiter.WithContext(ctx)
	}

	sc := scan.NewScanner(opts, s.logger)
	hs, err := sc.Scan(ctx, root)
	if err != nil {
		s.logger.Error("scan failed", "root", root, "error", err)
		metrics.RecordScanError()
		metrics.RecordCycle(root, "error")
		res.Err = fmt.Errorf("scan %s: %w", root, err)
		return res
	}
	st := sc.LastStats()
	metrics.RecordScan(root, st.Directories, st.Empty, st.Roots, st.Duration)
	res.Found = len(hs)

	cl := s.cleaner.ForRoot(root)
	cl.SetValidator(safety.NewValidator([]string{root}, s.cfg.Safety.ProtectedPaths))
	res.Report = cl.DeleteAll(ctx, hs, s.cfg.Elevation.Enabled)

	status := "ok"
	if res.Report.Failed > 0 {
		status = "partial"
	}
	metrics.RecordCycle(root, status)
	return res
}

// Run executes a cycle immediately, then on every interval tick or trigger
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.logger.Error("error running cycle", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
		case <-s.trigger:
			s.logger.Info("cycle triggered")
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("error running cycle", "error", err)
		}
	}
}
