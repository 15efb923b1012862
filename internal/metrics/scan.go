package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scan subsystem metrics
var (
	// ScanDuration tracks how long a full tree scan takes
	ScanDuration prometheus.Histogram

	// ScansTotal counts scans by status (ok, error, stale)
	ScansTotal *prometheus.CounterVec

	// DirectoriesScannedTotal counts directories enumerated across all scans
	DirectoriesScannedTotal prometheus.Counter

	// DirectoriesPerScan tracks the size of the walked tree
	DirectoriesPerScan prometheus.Histogram

	// EmptyRootsFound holds the number of minimal empty roots from the last scan per root
	EmptyRootsFound *prometheus.GaugeVec

	// EmptyDirectoriesFound holds the number of empty directories (roots and descendants) per root
	EmptyDirectoriesFound *prometheus.GaugeVec

	// StaleScanResultsTotal counts scan completions dropped because a newer scan had started
	StaleScanResultsTotal prometheus.Counter
)

func initScanMetrics() {
	ScanDuration = NewDurationHistogram(
		"emptyfolder_scan_duration_seconds",
		"Duration of directory tree scans in seconds.",
	)

	ScansTotal = NewCounterVec(
		"emptyfolder_scans_total",
		"Total number of scans by status.",
		[]string{"status"},
	)

	DirectoriesScannedTotal = NewCounter(
		"emptyfolder_directories_scanned_total",
		"Total number of directories enumerated by scans.",
	)

	DirectoriesPerScan = NewCountHistogram(
		"emptyfolder_scan_directories",
		"Number of directories enumerated per scan.",
	)

	EmptyRootsFound = NewGaugeVec(
		"emptyfolder_empty_roots",
		"Minimal empty directory roots found by the last scan of a root.",
		[]string{"root"},
	)

	EmptyDirectoriesFound = NewGaugeVec(
		"emptyfolder_empty_directories",
		"Empty directories (roots and descendants) found by the last scan of a root.",
		[]string{"root"},
	)

	StaleScanResultsTotal = NewCounter(
		"emptyfolder_stale_scan_results_total",
		"Scan completions discarded because a newer scan had started.",
	)
}

func registerScanMetrics() {
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(DirectoriesScannedTotal)
	prometheus.MustRegister(DirectoriesPerScan)
	prometheus.MustRegister(EmptyRootsFound)
	prometheus.MustRegister(EmptyDirectoriesFound)
	prometheus.MustRegister(StaleScanResultsTotal)
}

// RecordScan records one successful scan of root
func RecordScan(root string, directories, empty, roots int, duration time.Duration) {
	ScansTotal.WithLabelValues("ok").Inc()
	ScanDuration.Observe(duration.Seconds())
	DirectoriesScannedTotal.Add(float64(directories))
	DirectoriesPerScan.Observe(float64(directories))
	EmptyRootsFound.WithLabelValues(root).Set(float64(roots))
	EmptyDirectoriesFound.WithLabelValues(root).Set(float64(empty))
}

// RecordScanError records a scan that failed before producing results
func RecordScanError() {
	ScansTotal.WithLabelValues("error").Inc()
}

// RecordStaleScan records a completion that lost to a newer scan
func RecordStaleScan() {
	ScansTotal.WithLabelValues("stale").Inc()
	StaleScanResultsTotal.Inc()
}

// ScanRecorder implements the session package's metrics hook over the globals.
// Init must have been called.
type ScanRecorder struct{}

func (ScanRecorder) RecordScan(root string, directories, empty, roots int, duration time.Duration) {
	RecordScan(root, directories, empty, roots, duration)
}

func (ScanRecorder) RecordScanError() {
	RecordScanError()
}

func (ScanRecorder) RecordStaleScan() {
	RecordStaleScan()
}

func (ScanRecorder) RecordNFSStale(root string) {
	RecordNFSStale(root)
}
