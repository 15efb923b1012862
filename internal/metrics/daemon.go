package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Daemon subsystem metrics
var (
	// ErrorsTotal tracks total errors encountered by the daemon
	ErrorsTotal prometheus.Counter

	// CyclesTotal counts scheduled scan-and-clean cycles by status
	CyclesTotal *prometheus.CounterVec

	// LastCycleTimestamp records the Unix timestamp of the last cycle per root
	LastCycleTimestamp *prometheus.GaugeVec

	// NFSStaleTotal counts scans skipped because the root was a stale NFS mount
	NFSStaleTotal *prometheus.CounterVec
)

// initDaemonMetrics initializes all daemon subsystem metrics
func initDaemonMetrics() {
	ErrorsTotal = NewCounter(
		"emptyfolder_daemon_errors_total",
		"Total number of errors encountered by the cleaner.",
	)

	CyclesTotal = NewCounterVec(
		"emptyfolder_daemon_cycles_total",
		"Scheduled scan-and-clean cycles by status.",
		[]string{"status"},
	)

	LastCycleTimestamp = NewGaugeVec(
		"emptyfolder_daemon_last_cycle_timestamp",
		"Timestamp of the last scheduled cycle per root (Unix epoch seconds).",
		[]string{"root"},
	)

	NFSStaleTotal = NewCounterVec(
		"emptyfolder_nfs_stale_total",
		"Scans skipped because the root was an unresponsive NFS mount.",
		[]string{"root"},
	)
}

// registerDaemonMetrics registers all daemon metrics with Prometheus
func registerDaemonMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(LastCycleTimestamp)
	prometheus.MustRegister(NFSStaleTotal)
}

// RecordCycle records a finished scheduler cycle for root
func RecordCycle(root string, status string) {
	CyclesTotal.WithLabelValues(status).Inc()
	LastCycleTimestamp.WithLabelValues(root).Set(float64(time.Now().Unix()))
}

// RecordNFSStale records a skipped scan of a stale NFS root
func RecordNFSStale(root string) {
	NFSStaleTotal.WithLabelValues(root).Inc()
	ErrorsTotal.Inc()
}
