// Package health provides HTTP liveness and readiness probes for the orbit
// server, aggregating per-component checks for orchestrators and load
// balancers.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HealthCheck is one component's health probe.
type HealthCheck interface {
	// Name returns the unique name of this health check.
	Name() string
	// Check returns an error if the component is unhealthy.
	Check(ctx context.Context) error
}

// HealthStatus is the aggregated health of the application.
type HealthStatus struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the status of an individual component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker manages and executes registered health checks.
type HealthChecker struct {
	checks map[string]HealthCheck
	mu     sync.RWMutex
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheck),
	}
}

// AddCheck registers a health check, replacing any existing check with the
// same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

// RemoveCheck removes a health check by name.
func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// CheckHealth executes all registered checks. The overall status is
// healthy only when every individual check passes.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := HealthStatus{
		Status: "healthy",
		Checks: make(map[string]ComponentHealth),
	}

	for name, check := range hc.checks {
		if err := check.Check(ctx); err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = ComponentHealth{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			status.Checks[name] = ComponentHealth{
				Status: "healthy",
			}
		}
	}

	return status
}

// LivenessHandler answers liveness probes: 200 whenever the process can
// serve requests at all.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// ReadinessHandler answers readiness probes: 200 when every check passes,
// 503 otherwise, with the per-component detail in the body.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := hc.CheckHealth(ctx)

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(health)
}

// SimulationHealthCheck reports whether the simulation loop is alive: the
// simulation must be running and its tick counter must advance between
// probes.
type SimulationHealthCheck struct {
	running func() bool
	tick    func() uint64

	mu       sync.Mutex
	lastTick uint64
	lastSeen time.Time
}

// tickStallGrace is how long the tick counter may stand still before the
// simulation is considered stalled.
const tickStallGrace = 5 * time.Second

// NewSimulationHealthCheck creates a health check over the simulation's
// running flag and tick counter.
func NewSimulationHealthCheck(running func() bool, tick func() uint64) *SimulationHealthCheck {
	return &SimulationHealthCheck{
		running:  running,
		tick:     tick,
		lastSeen: time.Now(),
	}
}

// Name returns the name of this health check.
func (s *SimulationHealthCheck) Name() string {
	return "simulation"
}

// Check verifies the simulation is running and ticking.
func (s *SimulationHealthCheck) Check(ctx context.Context) error {
	if !s.running() {
		return fmt.Errorf("simulation is not running")
	}

	current := s.tick()

	s.mu.Lock()
	defer s.mu.Unlock()

	if current != s.lastTick {
		s.lastTick = current
		s.lastSeen = time.Now()
		return nil
	}
	if time.Since(s.lastSeen) > tickStallGrace {
		return fmt.Errorf("tick counter stalled at %d", current)
	}
	return nil
}

// TickRateHealthCheck reports whether the simulation holds its step rate.
type TickRateHealthCheck struct {
	expected float64
	actual   func() float64
}

// NewTickRateHealthCheck creates a check that fails when the measured step
// rate drops below half the expected rate.
func NewTickRateHealthCheck(expected float64, actual func() float64) *TickRateHealthCheck {
	return &TickRateHealthCheck{
		expected: expected,
		actual:   actual,
	}
}

// Name returns the name of this health check.
func (t *TickRateHealthCheck) Name() string {
	return "tick_rate"
}

// Check verifies the measured step rate. A zero measurement passes, since
// the rate window has not filled yet at startup.
func (t *TickRateHealthCheck) Check(ctx context.Context) error {
	rate := t.actual()
	if rate == 0 {
		return nil
	}
	if rate < t.expected/2 {
		return fmt.Errorf("step rate %.1f below half of expected %.1f", rate, t.expected)
	}
	return nil
}

// NetworkHealthCheck reports whether the TCP listener is active.
type NetworkHealthCheck struct {
	listenerAddr func() string
}

// NewNetworkHealthCheck creates a health check over the listener address.
func NewNetworkHealthCheck(listenerAddr func() string) *NetworkHealthCheck {
	return &NetworkHealthCheck{
		listenerAddr: listenerAddr,
	}
}

// Name returns the name of this health check.
func (n *NetworkHealthCheck) Name() string {
	return "network"
}

// Check verifies that the network listener is active.
func (n *NetworkHealthCheck) Check(ctx context.Context) error {
	if n.listenerAddr() == "" {
		return fmt.Errorf("network listener is not active")
	}
	return nil
}

// MemoryHealthCheck reports whether memory usage is within limits.
type MemoryHealthCheck struct {
	maxMemoryMB    int64
	getMemoryUsage func() int64
}

// NewMemoryHealthCheck creates a health check for memory usage.
func NewMemoryHealthCheck(maxMemoryMB int64, getMemoryUsage func() int64) *MemoryHealthCheck {
	return &MemoryHealthCheck{
		maxMemoryMB:    maxMemoryMB,
		getMemoryUsage: getMemoryUsage,
	}
}

// Name returns the name of this health check.
func (m *MemoryHealthCheck) Name() string {
	return "memory"
}

// Check verifies that memory usage is within acceptable limits.
func (m *MemoryHealthCheck) Check(ctx context.Context) error {
	currentMB := m.getMemoryUsage()
	if currentMB > m.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", currentMB, m.maxMemoryMB)
	}
	return nil
}
