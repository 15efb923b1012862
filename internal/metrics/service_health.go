package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Service health metrics
var (
	// ServiceHealthy indicates overall health status
	ServiceHealthy *prometheus.GaugeVec

	// ServiceStartTime records process start timestamp
	ServiceStartTime prometheus.Gauge

	// ComponentHealthy tracks individual component health
	ComponentHealthy *prometheus.GaugeVec

	// LastHealthCheck records timestamp of last health check
	LastHealthCheck *prometheus.GaugeVec

	// HealthCheckDuration tracks health check execution time
	HealthCheckDuration *prometheus.HistogramVec

	// HealthCheckFailures counts consecutive failures per component
	HealthCheckFailures *prometheus.GaugeVec

	// HealthCheckTimeouts counter tracks timeout events
	HealthCheckTimeouts prometheus.Counter
)

var errHealthCheckTimeout = errors.New("health check timeout")

// HealthChecker runs periodic health checks for components such as the
// history database and the scan roots
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	started       bool
	stopped       bool
}

// ComponentHealth represents health status of a single component
type ComponentHealth struct {
	Name         string
	LastCheck    time.Time
	Healthy      bool
	LastError    string
	CheckFunc    func() error
	FailureCount int
	Timeout      time.Duration
}

// initServiceHealthMetrics initializes all service health metrics
func initServiceHealthMetrics() {
	ServiceHealthy = NewGaugeVec(
		"emptyfolder_healthy",
		"Health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	ServiceStartTime = NewGauge(
		"emptyfolder_start_timestamp_seconds",
		"Unix timestamp when the process started.",
	)

	ComponentHealthy = NewGaugeVec(
		"emptyfolder_component_healthy",
		"Individual component health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	LastHealthCheck = NewGaugeVec(
		"emptyfolder_last_health_check_timestamp_seconds",
		"Unix timestamp of last health check.",
		[]string{"component"},
	)

	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emptyfolder_health_check_duration_seconds",
			Help:    "Time taken to execute health checks.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"component"},
	)

	HealthCheckFailures = NewGaugeVec(
		"emptyfolder_health_check_failures_consecutive",
		"Consecutive health check failures per component.",
		[]string{"component"},
	)

	HealthCheckTimeouts = NewCounter(
		"emptyfolder_health_check_timeouts_total",
		"Total number of health check timeouts.",
	)
}

// registerServiceHealthMetrics registers all service health metrics
func registerServiceHealthMetrics() {
	prometheus.MustRegister(ServiceHealthy)
	prometheus.MustRegister(ServiceStartTime)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(LastHealthCheck)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(HealthCheckFailures)
	prometheus.MustRegister(HealthCheckTimeouts)
}

// NewHealthChecker creates a new health checker with specified check interval.
// Init must have been called.
func NewHealthChecker(interval time.Duration) *HealthChecker {
	hc := &HealthChecker{
		startTime:     time.Now(),
		components:    make(map[string]*ComponentHealth),
		checkInterval: interval,
		stopCh:        make(chan struct{}),
	}

	ServiceStartTime.Set(float64(hc.startTime.Unix()))
	ServiceHealthy.WithLabelValues("overall").Set(1)

	return hc
}

// RegisterComponent adds a component health check
// checkFunc returns nil on success; timeout 0 means no timeout
func (hc *HealthChecker) RegisterComponent(name string, checkFunc func() error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:      name,
		CheckFunc: checkFunc,
		Healthy:   true,
		Timeout:   timeout,
	}

	ComponentHealthy.WithLabelValues(name).Set(1)
	HealthCheckFailures.WithLabelValues(name).Set(0)
}

// Start begins periodic health checking
// Must be called after registering all components
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = true
	hc.mu.Unlock()

	hc.wg.Add(1)
	go hc.runHealthCheckLoop()
}

// Stop halts health checking and waits for completion
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.started || hc.stopped {
		hc.mu.Unlock()
		return
	}
	hc.stopped = true
	hc.mu.Unlock()

	close(hc.stopCh)
	hc.wg.Wait()
}

func (hc *HealthChecker) runHealthCheckLoop() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.CheckNow()

	for {
		select {
		case <-ticker.C:
			hc.CheckNow()
		case <-hc.stopCh:
			return
		}
	}
}

// CheckNow runs every registered check once. Checks run without holding the
// lock so a slow component never blocks /health readers.
func (hc *HealthChecker) CheckNow() {
	hc.mu.RLock()
	comps := make([]*ComponentHealth, 0, len(hc.components))
	for _, c := range hc.components {
		comps = append(comps, c)
	}
	hc.mu.RUnlock()

	type result struct {
		comp *ComponentHealth
		err  error
		at   time.Time
	}
	results := make([]result, 0, len(comps))
	for _, comp := range comps {
		start := time.Now()
		var err error
		if comp.Timeout > 0 {
			err = runWithTimeout(comp.CheckFunc, comp.Timeout)
		} else {
			err = comp.CheckFunc()
		}
		HealthCheckDuration.WithLabelValues(comp.Name).Observe(time.Since(start).Seconds())
		results = append(results, result{comp: comp, err: err, at: time.Now()})
	}

	hc.mu.Lock()
	defer hc.mu.Unlock()

	overallHealthy := true
	for _, r := range results {
		r.comp.LastCheck = r.at
		LastHealthCheck.WithLabelValues(r.comp.Name).Set(float64(r.at.Unix()))

		if r.err != nil {
			r.comp.Healthy = false
			r.comp.LastError = r.err.Error()
			r.comp.FailureCount++
			overallHealthy = false

			ComponentHealthy.WithLabelValues(r.comp.Name).Set(0)
			HealthCheckFailures.WithLabelValues(r.comp.Name).Set(float64(r.comp.FailureCount))
			ErrorsTotal.Inc()
			continue
		}
		r.comp.Healthy = true
		r.comp.LastError = ""
		r.comp.FailureCount = 0

		ComponentHealthy.WithLabelValues(r.comp.Name).Set(1)
		HealthCheckFailures.WithLabelValues(r.comp.Name).Set(0)
	}

	if overallHealthy {
		ServiceHealthy.WithLabelValues("overall").Set(1)
	} else {
		ServiceHealthy.WithLabelValues("overall").Set(0)
	}
}

func runWithTimeout(fn func() error, timeout time.Duration) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- fn()
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		HealthCheckTimeouts.Inc()
		return errHealthCheckTimeout
	}
}

// ComponentStatus is the reported state of one component.
type ComponentStatus struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
}

// GetHealth returns current health status of all components
func (hc *HealthChecker) GetHealth() map[string]ComponentStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	health := make(map[string]ComponentStatus, len(hc.components))
	for name, comp := range hc.components {
		health[name] = ComponentStatus{
			Healthy:   comp.Healthy,
			LastCheck: comp.LastCheck,
			Error:     comp.LastError,
		}
	}
	return health
}

// IsHealthy returns true if all components are healthy
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	for _, comp := range hc.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}

// GetUptime returns uptime in seconds
func (hc *HealthChecker) GetUptime() float64 {
	return time.Since(hc.startTime).Seconds()
}
