package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"emptyfolder-cleaner/internal/database"
	"emptyfolder-cleaner/internal/fsops"
	"emptyfolder-cleaner/internal/metrics"
	"emptyfolder-cleaner/internal/safety"
	"emptyfolder-cleaner/internal/scan"
)

var (
	// ErrPermissionDenied means an ordinary delete was refused by the OS and
	// elevation was not allowed. The caller may retry with elevation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrElevationFailed means the privileged delete reported an error or the
	// directory still existed afterwards.
	ErrElevationFailed = errors.New("elevated delete failed")
	// ErrUnsafePath means the safety validator refused the target.
	ErrUnsafePath = errors.New("unsafe delete target")
)

var errNoElevator = errors.New("no elevator configured")

// Logger interface for structured logging in cleanup
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// History records one row per deletion attempt. *database.DeletionDB satisfies it.
type History interface {
	RecordDeletion(rec database.DeletionRecord) error
}

// Metrics receives deletion outcomes. metrics.Recorder satisfies it.
type Metrics interface {
	Deletion(outcome string, nodes int)
	Elevation(ok bool)
	Batch(deleted, failed int, duration time.Duration)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type nopMetrics struct{}

func (nopMetrics) Deletion(string, int)          {}
func (nopMetrics) Elevation(bool)                {}
func (nopMetrics) Batch(int, int, time.Duration) {}

// Cleaner removes empty hierarchies. Every target passes the safety validator
// before the deleter sees it.
type Cleaner struct {
	logger    Logger
	validator *safety.Validator
	deleter   fsops.Deleter
	elevator  fsops.Elevator
	history   History
	metrics   Metrics
	onRemoved func(path string)
	root      string
	dryRun    bool
}

// NewCleaner creates a Cleaner backed by the real filesystem. history may be nil.
func NewCleaner(logger Logger, validator *safety.Validator, dryRun bool, history History) *Cleaner {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Cleaner{
		logger:    logger,
		validator: validator,
		deleter:   &fsops.OSDeleter{},
		history:   history,
		metrics:   nopMetrics{},
		dryRun:    dryRun,
	}
}

// SetDeleter replaces the deleter (for testing)
func (c *Cleaner) SetDeleter(d fsops.Deleter) {
	c.deleter = d
}

// SetValidator replaces the safety validator
func (c *Cleaner) SetValidator(v *safety.Validator) {
	c.validator = v
}

// SetElevator configures the privileged delete used when elevation is allowed.
func (c *Cleaner) SetElevator(e fsops.Elevator) {
	c.elevator = e
}

// SetOnRemoved registers a callback run with the path of every removed hierarchy.
func (c *Cleaner) SetOnRemoved(fn func(path string)) {
	c.onRemoved = fn
}

// SetMetrics wires a metrics sink. A nil sink disables metrics.
func (c *Cleaner) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	c.metrics = m
}

// ForRoot returns a copy of c that tags history rows with root.
func (c *Cleaner) ForRoot(root string) *Cleaner {
	cp := *c
	cp.root = root
	return &cp
}

// DryRun reports whether c only logs deletions.
func (c *Cleaner) DryRun() bool {
	return c.dryRun
}

// Delete removes h.Path and everything beneath it. A permission failure
// returns ErrPermissionDenied unless allowElevation is set, in which case the
// elevator is tried and its failure returns ErrElevationFailed. Other
// filesystem errors are returned wrapped with the path.
func (c *Cleaner) Delete(ctx context.Context, h scan.DirectoryHierarchy, allowElevation bool) error {
	return c.delete(ctx, h, allowElevation, false)
}

// delete is Delete. With retryPending set, a permission refusal is returned
// without history or metrics; the elevated retry records the final outcome.
func (c *Cleaner) delete(ctx context.Context, h scan.DirectoryHierarchy, allowElevation, retryPending bool) error {
	nodes := h.Count()

	if err := c.validate(h.Path); err != nil {
		c.logger.Warn("Refusing unsafe delete target", "path", h.Path, "error", err)
		c.record(h, database.ActionSkip, false, err)
		c.metrics.Deletion(metrics.OutcomeUnsafe, nodes)
		return fmt.Errorf("%w: %s: %v", ErrUnsafePath, h.Path, err)
	}

	if c.dryRun {
		c.logger.Info("[DRY RUN] Would remove empty hierarchy", "path", h.Path, "directories", nodes)
		c.record(h, database.ActionDryRun, false, nil)
		c.metrics.Deletion(metrics.OutcomeDryRun, nodes)
		return nil
	}

	exists, err := c.deleter.Exists(h.Path)
	if err == nil && !exists {
		err = fs.ErrNotExist
	}
	if err == nil {
		err = c.deleter.RemoveAll(h.Path)
	}
	if err == nil {
		c.removed(h, false)
		return nil
	}

	if !errors.Is(err, fs.ErrPermission) {
		c.logger.Error("Failed to delete", "path", h.Path, "error", err)
		c.record(h, database.ActionError, false, err)
		c.metrics.Deletion(metrics.OutcomeError, nodes)
		return fmt.Errorf("delete %s: %w", h.Path, err)
	}

	if !allowElevation {
		if retryPending {
			c.logger.Info("Permission denied, deferring to elevated pass", "path", h.Path)
			return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, h.Path, err)
		}
		c.logger.Warn("Permission denied", "path", h.Path)
		c.record(h, database.ActionError, false, err)
		c.metrics.Deletion(metrics.OutcomePermissionDenied, nodes)
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, h.Path, err)
	}

	if err := c.elevate(ctx, h.Path); err != nil {
		c.logger.Error("Elevated delete failed", "path", h.Path, "error", err)
		c.record(h, database.ActionError, true, err)
		c.metrics.Elevation(false)
		c.metrics.Deletion(metrics.OutcomeElevationFailed, nodes)
		return fmt.Errorf("%w: %s: %v", ErrElevationFailed, h.Path, err)
	}

	c.metrics.Elevation(true)
	c.removed(h, true)
	return nil
}

func (c *Cleaner) validate(path string) error {
	if c.validator == nil {
		return errors.New("no safety validator configured")
	}
	return c.validator.ValidateDeleteTarget(path)
}

// elevate runs the privileged delete and confirms the directory is gone.
func (c *Cleaner) elevate(ctx context.Context, path string) error {
	if c.elevator == nil {
		return errNoElevator
	}
	c.logger.Info("Retrying delete with elevated privileges", "path", path)
	if err := c.elevator.RemoveAll(ctx, path); err != nil {
		return err
	}
	exists, err := c.deleter.Exists(path)
	if err != nil {
		return fmt.Errorf("verify removal: %w", err)
	}
	if exists {
		return errors.New("directory still exists after elevated delete")
	}
	return nil
}

func (c *Cleaner) removed(h scan.DirectoryHierarchy, elevated bool) {
	action := database.ActionDelete
	outcome := metrics.OutcomeDeleted
	if elevated {
		action = database.ActionElevatedDelete
		outcome = metrics.OutcomeElevated
	}
	c.logger.Info("Removed empty hierarchy", "path", h.Path, "directories", h.Count(), "elevated", elevated)
	c.record(h, action, elevated, nil)
	c.metrics.Deletion(outcome, h.Count())
	if c.onRemoved != nil {
		c.onRemoved(h.Path)
	}
}

func (c *Cleaner) record(h scan.DirectoryHierarchy, action string, elevated bool, cause error) {
	if c.history == nil {
		return
	}
	rec := database.DeletionRecord{
		Action:   action,
		Path:     h.Path,
		Root:     c.root,
		Depth:    h.Depth,
		Nodes:    h.Count(),
		Elevated: elevated,
	}
	if cause != nil {
		rec.ErrorMessage = cause.Error()
	}
	// A history failure never fails the delete.
	if err := c.history.RecordDeletion(rec); err != nil {
		c.logger.Error("Failed to record to database", "path", h.Path, "error", err)
	}
}
