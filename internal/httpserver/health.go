// v1
// internal/httpserver/health.go
package httpserver

import "sync"

// HealthState tracks readiness. Liveness is always true while the process
// runs; readiness is set once the sensor is configured and the listener is
// bound, and cleared when shutdown starts.
type HealthState struct {
	mu    sync.RWMutex
	ready bool
}

func NewHealthState() *HealthState {
	return &HealthState{}
}

func (h *HealthState) SetReady(value bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = value
}

func (h *HealthState) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}
