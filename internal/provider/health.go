package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/move-booking/internal/metrics"
)

const (
	defaultCheckInterval = 30 * time.Second
	defaultCheckTimeout  = 10 * time.Second
	unhealthyThreshold   = 3
)

// HealthStatus represents the current health state of a provider.
type HealthStatus struct {
	Healthy             bool
	LastCheck           time.Time
	ConsecutiveFailures int
	LastError           string
}

// HealthChecker periodically checks provider health and tracks status.
type HealthChecker struct {
	mu            sync.RWMutex
	registry      *Registry
	statuses      map[string]*HealthStatus
	checkInterval time.Duration
	checkTimeout  time.Duration
	log           zerolog.Logger
	cancel        context.CancelFunc
	stopped       chan struct{}
}

// NewHealthChecker creates a health checker that monitors all providers
// in the given registry. A non-positive interval uses the default.
func NewHealthChecker(registry *Registry, interval time.Duration, log zerolog.Logger) *HealthChecker {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &HealthChecker{
		registry:      registry,
		statuses:      make(map[string]*HealthStatus),
		checkInterval: interval,
		checkTimeout:  defaultCheckTimeout,
		log:           log.With().Str("component", "provider-health").Logger(),
		stopped:       make(chan struct{}),
	}
}

// Start runs an initial check synchronously, then keeps checking in the
// background until Stop is called or ctx is cancelled.
func (hc *HealthChecker) Start(ctx context.Context) {
	ctx, hc.cancel = context.WithCancel(ctx)
	hc.checkAll(ctx)
	go hc.run(ctx)
}

// Stop signals the health check loop to terminate and waits for it to finish.
func (hc *HealthChecker) Stop() {
	if hc.cancel == nil {
		return
	}
	hc.cancel()
	<-hc.stopped
}

// IsHealthy returns whether a provider is currently healthy.
func (hc *HealthChecker) IsHealthy(name string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	status, ok := hc.statuses[name]
	if !ok {
		// Unknown provider is considered unhealthy.
		return false
	}
	return status.Healthy
}

// AllHealthy reports whether every registered provider is healthy. It backs
// the worker's readiness probe.
func (hc *HealthChecker) AllHealthy() bool {
	for _, p := range hc.registry.All() {
		if !hc.IsHealthy(p.GetName()) {
			return false
		}
	}
	return true
}

// GetStatus returns the full health status for a provider.
func (hc *HealthChecker) GetStatus(name string) (HealthStatus, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	status, ok := hc.statuses[name]
	if !ok {
		return HealthStatus{}, false
	}
	return *status, true
}

// GetAllStatuses returns a snapshot of all provider health statuses.
func (hc *HealthChecker) GetAllStatuses() map[string]HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	result := make(map[string]HealthStatus, len(hc.statuses))
	for name, status := range hc.statuses {
		result[name] = *status
	}
	return result
}

func (hc *HealthChecker) run(ctx context.Context) {
	defer close(hc.stopped)

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.checkAll(ctx)
		}
	}
}

func (hc *HealthChecker) checkAll(ctx context.Context) {
	for _, p := range hc.registry.All() {
		hc.checkProvider(ctx, p)
	}
}

func (hc *HealthChecker) checkProvider(ctx context.Context, p Provider) {
	ctx, cancel := context.WithTimeout(ctx, hc.checkTimeout)
	defer cancel()

	err := p.HealthCheck(ctx)
	name := p.GetName()

	hc.mu.Lock()
	defer hc.mu.Unlock()

	status, ok := hc.statuses[name]
	if !ok {
		status = &HealthStatus{Healthy: true}
		hc.statuses[name] = status
	}

	status.LastCheck = time.Now()

	if err != nil {
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		if status.ConsecutiveFailures >= unhealthyThreshold {
			if status.Healthy {
				hc.log.Warn().Err(err).Str("provider", name).Msg("provider marked unhealthy")
			}
			status.Healthy = false
		}
	} else {
		// 1 success resets to healthy.
		status.ConsecutiveFailures = 0
		status.Healthy = true
		status.LastError = ""
	}

	if status.Healthy {
		metrics.ProviderHealthy.WithLabelValues(name).Set(1)
	} else {
		metrics.ProviderHealthy.WithLabelValues(name).Set(0)
	}
}
