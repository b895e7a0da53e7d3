// Package health tracks the liveness of the GSUP front-end: connection
// throughput, recorded errors, and per-component status surfaced
// through the admin /healthz endpoint.
package health

import (
	"sync"
	"time"
)

// Check is the process-wide health tracker.
type Check struct {
	mu        sync.RWMutex
	status    Status
	startTime time.Time
}

// Config configures the periodic uptime/status refresh.
type Config struct {
	Enabled       bool
	CheckInterval time.Duration
}

// Status is a point-in-time snapshot of process health.
type Status struct {
	Healthy           bool
	Timestamp         time.Time
	UptimeSeconds     int64
	MessagesProcessed int64
	ConnectionsActive int64
	ErrorCount        int64
	LastError         string
	ComponentStatus   map[string]ComponentStatus
}

// ComponentStatus is the health of one dependency (e.g. the provisioner
// or the audit database).
type ComponentStatus struct {
	Name      string
	Healthy   bool
	Message   string
	LastCheck time.Time
}

// New creates a Check and, if cfg.Enabled, starts its periodic refresh
// loop.
func New(cfg Config) *Check {
	h := &Check{
		status: Status{
			Healthy:         true,
			Timestamp:       time.Now(),
			ComponentStatus: make(map[string]ComponentStatus),
		},
		startTime: time.Now(),
	}

	if cfg.Enabled {
		go h.checkLoop(cfg.CheckInterval)
	}

	return h
}

// GetStatus returns a deep copy of the current status, safe to marshal
// and hand to a caller without holding any lock.
func (h *Check) GetStatus() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statusCopy := h.status
	statusCopy.ComponentStatus = make(map[string]ComponentStatus, len(h.status.ComponentStatus))
	for k, v := range h.status.ComponentStatus {
		statusCopy.ComponentStatus[k] = v
	}
	statusCopy.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	return statusCopy
}

// UpdateComponentStatus records the health of a named dependency and
// recomputes overall health from all known components.
func (h *Check) UpdateComponentStatus(name string, healthy bool, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status.ComponentStatus[name] = ComponentStatus{
		Name:      name,
		Healthy:   healthy,
		Message:   message,
		LastCheck: time.Now(),
	}
	h.updateOverallHealth()
}

// RecordMessage increments the processed-frame counter.
func (h *Check) RecordMessage() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.MessagesProcessed++
}

// RecordError increments the error counter and records the most recent
// error text.
func (h *Check) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.ErrorCount++
	h.status.LastError = err.Error()
}

// UpdateConnectionCount sets the currently-open connection gauge reported
// in Status.
func (h *Check) UpdateConnectionCount(count int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.ConnectionsActive = count
}

func (h *Check) checkLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		h.status.Timestamp = time.Now()
		h.updateOverallHealth()
		h.mu.Unlock()
	}
}

func (h *Check) updateOverallHealth() {
	h.status.Healthy = true
	for _, component := range h.status.ComponentStatus {
		if !component.Healthy {
			h.status.Healthy = false
			break
		}
	}
}
