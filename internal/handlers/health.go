package handlers

import (
	"net/http"
	"time"

	"pms-assistant/internal/resilience"
)

type circuitReporter interface {
	CircuitStates() map[string]resilience.CircuitState
}

type HealthHandler struct {
	circuits circuitReporter
	version  string
}

func NewHealthHandler(circuits circuitReporter, version string) *HealthHandler {
	return &HealthHandler{circuits: circuits, version: version}
}

type circuitStatus struct {
	State        string     `json:"state"`
	FailureCount int        `json:"failure_count"`
	OpenedUntil  *time.Time `json:"opened_until,omitempty"`
}

// Health reports liveness plus the state of each AI circuit. An open circuit
// does not fail the check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	circuits := make(map[string]circuitStatus)
	if h.circuits != nil {
		for target, cs := range h.circuits.CircuitStates() {
			status := circuitStatus{State: cs.State.String(), FailureCount: cs.FailureCount}
			if cs.State == resilience.StateOpen {
				until := cs.OpenedUntil
				status.OpenedUntil = &until
			}
			circuits[target] = status
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"circuits": circuits,
	})
}
