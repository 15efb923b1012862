package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Logger is the subset of the application logger the metrics server uses.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

var (
	// Core synchronization primitives
	initOnce       sync.Once
	serverMutex    sync.Mutex
	currentSrv     *http.Server
	triggerMutex   sync.RWMutex
	triggerChannel chan struct{}

	// Global health checker instance
	globalHealthChecker *HealthChecker
	healthMutex         sync.RWMutex
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initScanMetrics()
		initCleanupMetrics()
		initDaemonMetrics()
		initAPIMetrics()
		initServiceHealthMetrics()

		registerScanMetrics()
		registerCleanupMetrics()
		registerDaemonMetrics()
		registerAPIMetrics()
		registerServiceHealthMetrics()

		// Series appear in /metrics before the first batch runs
		CleanupLastRunTimestamp.Set(0)
		LastBatchDeleted.Set(0)
		LastBatchFailed.Set(0)
	})
}

// SetTriggerChannel sets the channel that POST /trigger signals to start a
// scan-and-clean cycle
func SetTriggerChannel(ch chan struct{}) {
	triggerMutex.Lock()
	defer triggerMutex.Unlock()
	triggerChannel = ch
}

// Handler returns the mux served by StartServer: /metrics (Prometheus),
// /health and /trigger.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/trigger", triggerHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	hc := GetHealthChecker()
	if hc == nil {
		// No health checker configured, default to ok
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "healthy": true})
		return
	}

	healthy := hc.IsHealthy()
	body := map[string]interface{}{
		"status":         "ok",
		"healthy":        healthy,
		"components":     hc.GetHealth(),
		"uptime_seconds": hc.GetUptime(),
	}
	if !healthy {
		body["status"] = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(body)
}

func triggerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	triggerMutex.RLock()
	ch := triggerChannel
	triggerMutex.RUnlock()

	if ch == nil {
		http.Error(w, "Trigger channel not initialized", http.StatusServiceUnavailable)
		return
	}
	select {
	case ch <- struct{}{}:
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("Cycle triggered"))
	default:
		http.Error(w, "Cycle already pending", http.StatusServiceUnavailable)
	}
}

// StartServer starts the metrics HTTP server on the specified address
func StartServer(addr string, logger Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Info("Metrics server already running", "addr", currentSrv.Addr)
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
			ErrorsTotal.Inc()
		}
	}()
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	// Stop health checker if running
	healthMutex.Lock()
	if globalHealthChecker != nil {
		globalHealthChecker.Stop()
		globalHealthChecker = nil
	}
	healthMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown error", "error", err)
		ErrorsTotal.Inc()
	}
	currentSrv = nil
}

// SetHealthChecker sets the global health checker instance
func SetHealthChecker(hc *HealthChecker) {
	healthMutex.Lock()
	defer healthMutex.Unlock()
	globalHealthChecker = hc
}

// GetHealthChecker returns the global health checker instance
func GetHealthChecker() *HealthChecker {
	healthMutex.RLock()
	defer healthMutex.RUnlock()
	return globalHealthChecker
}
