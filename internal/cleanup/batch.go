package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emptyfolder-cleaner/internal/scan"
)

// DeletionStats counts the outcome of one batch.
type DeletionStats struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Report is the full result of DeleteAll. Failed always equals
// PermissionDenied + ElevationFailed + OtherFailed.
type Report struct {
	DeletionStats
	PermissionDenied int `json:"permission_denied"`
	ElevationFailed  int `json:"elevation_failed"`
	OtherFailed      int `json:"other_failed"`
	// Elevated counts items removed by the second, privileged pass.
	Elevated       int  `json:"elevated"`
	ElevationTried bool `json:"elevation_tried"`
}

// Summary returns the message shown when a batch left folders behind. It is
// empty when nothing failed.
func (r Report) Summary() string {
	if r.Failed == 0 {
		return ""
	}
	denied := r.PermissionDenied + r.ElevationFailed
	reason := "due to insufficient permissions"
	if r.ElevationTried {
		reason = "even with elevated privileges"
	}
	switch {
	case denied == 0:
		return fmt.Sprintf("%d folder(s) could not be deleted", r.Failed)
	case r.OtherFailed == 0:
		return fmt.Sprintf("%d folder(s) could not be deleted %s", r.Failed, reason)
	default:
		return fmt.Sprintf("%d folder(s) could not be deleted: %d %s, %d due to other errors",
			r.Failed, denied, reason, r.OtherFailed)
	}
}

// DeleteAll attempts every hierarchy in hs. The first pass never elevates.
// When askForElevation is set, items refused for permissions get a second,
// elevated pass; an item that vanished in the meantime counts as deleted.
// Failures are counted, never returned, and never stop the batch.
func (c *Cleaner) DeleteAll(ctx context.Context, hs []scan.DirectoryHierarchy, askForElevation bool) Report {
	start := time.Now()
	c.logger.Info("Starting cleanup", "total_candidates", len(hs), "ask_for_elevation", askForElevation)

	var rep Report
	var denied []scan.DirectoryHierarchy

	for _, h := range hs {
		err := c.delete(ctx, h, false, askForElevation)
		switch {
		case err == nil:
			rep.Deleted++
		case errors.Is(err, ErrPermissionDenied):
			denied = append(denied, h)
		default:
			rep.OtherFailed++
		}
	}

	if len(denied) > 0 && askForElevation {
		rep.ElevationTried = true
		for _, h := range denied {
			exists, err := c.deleter.Exists(h.Path)
			if err == nil && !exists {
				c.logger.Info("Already removed before elevation", "path", h.Path)
				rep.Deleted++
				if c.onRemoved != nil {
					c.onRemoved(h.Path)
				}
				continue
			}
			switch err := c.Delete(ctx, h, true); {
			case err == nil:
				rep.Deleted++
				rep.Elevated++
			case errors.Is(err, ErrElevationFailed):
				rep.ElevationFailed++
			case errors.Is(err, ErrPermissionDenied):
				rep.PermissionDenied++
			default:
				rep.OtherFailed++
			}
		}
	} else {
		rep.PermissionDenied = len(denied)
	}

	rep.Failed = rep.PermissionDenied + rep.ElevationFailed + rep.OtherFailed
	c.metrics.Batch(rep.Deleted, rep.Failed, time.Since(start))

	c.logger.Info("Cleanup complete",
		"deleted", rep.Deleted,
		"failed", rep.Failed,
		"elevated", rep.Elevated,
		"duration", time.Since(start).String(),
	)
	if msg := rep.Summary(); msg != "" {
		c.logger.Warn(msg)
	}
	return rep
}
