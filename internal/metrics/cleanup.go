package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Deletion outcomes used as the "outcome" label.
const (
	OutcomeDeleted          = "deleted"
	OutcomeElevated         = "elevated"
	OutcomeDryRun           = "dry_run"
	OutcomePermissionDenied = "permission_denied"
	OutcomeElevationFailed  = "elevation_failed"
	OutcomeUnsafe           = "unsafe"
	OutcomeError            = "error"
)

// Cleanup subsystem metrics
var (
	// DeletionsTotal counts single hierarchy deletions by outcome
	DeletionsTotal *prometheus.CounterVec

	// DirectoriesRemovedTotal counts directories removed, descendants included
	DirectoriesRemovedTotal prometheus.Counter

	// ElevationAttemptsTotal counts privileged deletes by result (ok, failed)
	ElevationAttemptsTotal *prometheus.CounterVec

	// BatchDuration tracks duration of delete-all batches
	BatchDuration prometheus.Histogram

	// BatchesTotal counts delete-all batches by status (clean, partial)
	BatchesTotal *prometheus.CounterVec

	// LastBatchDeleted and LastBatchFailed mirror the last batch's stats
	LastBatchDeleted prometheus.Gauge
	LastBatchFailed  prometheus.Gauge

	// CleanupLastRunTimestamp records Unix timestamp of the last batch
	CleanupLastRunTimestamp prometheus.Gauge
)

// initCleanupMetrics initializes all cleanup subsystem metrics
func initCleanupMetrics() {
	DeletionsTotal = NewCounterVec(
		"emptyfolder_deletions_total",
		"Hierarchy deletions by outcome.",
		[]string{"outcome"},
	)

	DirectoriesRemovedTotal = NewCounter(
		"emptyfolder_directories_removed_total",
		"Total number of directories removed, descendants included.",
	)

	ElevationAttemptsTotal = NewCounterVec(
		"emptyfolder_elevation_attempts_total",
		"Privileged delete attempts by result.",
		[]string{"result"},
	)

	BatchDuration = NewDurationHistogram(
		"emptyfolder_batch_duration_seconds",
		"Duration of delete-all batches in seconds.",
	)

	BatchesTotal = NewCounterVec(
		"emptyfolder_batches_total",
		"Delete-all batches by status.",
		[]string{"status"},
	)

	LastBatchDeleted = NewGauge(
		"emptyfolder_last_batch_deleted",
		"Hierarchies deleted by the last batch.",
	)

	LastBatchFailed = NewGauge(
		"emptyfolder_last_batch_failed",
		"Hierarchies that failed in the last batch.",
	)

	CleanupLastRunTimestamp = NewGauge(
		"emptyfolder_cleanup_last_run_timestamp",
		"Timestamp of the last delete batch (Unix epoch seconds).",
	)
}

// registerCleanupMetrics registers all cleanup metrics with Prometheus
func registerCleanupMetrics() {
	prometheus.MustRegister(DeletionsTotal)
	prometheus.MustRegister(DirectoriesRemovedTotal)
	prometheus.MustRegister(ElevationAttemptsTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(LastBatchDeleted)
	prometheus.MustRegister(LastBatchFailed)
	prometheus.MustRegister(CleanupLastRunTimestamp)
}

// Recorder implements the cleanup package's metrics hook over the globals.
// Init must have been called.
type Recorder struct{}

// Deletion records one hierarchy deletion outcome; nodes counts directories removed
func (Recorder) Deletion(outcome string, nodes int) {
	DeletionsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeDeleted || outcome == OutcomeElevated {
		DirectoriesRemovedTotal.Add(float64(nodes))
	}
}

// Elevation records one privileged delete attempt
func (Recorder) Elevation(ok bool) {
	if ok {
		ElevationAttemptsTotal.WithLabelValues("ok").Inc()
		return
	}
	ElevationAttemptsTotal.WithLabelValues("failed").Inc()
}

// Batch records a finished delete-all batch
func (Recorder) Batch(deleted, failed int, duration time.Duration) {
	BatchDuration.Observe(duration.Seconds())
	status := "clean"
	if failed > 0 {
		status = "partial"
	}
	BatchesTotal.WithLabelValues(status).Inc()
	LastBatchDeleted.Set(float64(deleted))
	LastBatchFailed.Set(float64(failed))
	CleanupLastRunTimestamp.Set(float64(time.Now().Unix()))
}
