package handlers

import (
	"encoding/json"
	"net/http"

	"pulse/internal/health"
	"pulse/internal/stats"
)

// StatsProvider exposes the pipeline counters to the API layer.
type StatsProvider interface {
	Stats() stats.Snapshot
}

// StatsHandler serves the pipeline counter snapshot.
func StatsHandler(p StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.Stats())
	}
}

// HealthHandler serves the latest composite health snapshot. Degraded state
// maps to 503 so load balancers can act on it.
func HealthHandler(m *health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := m.Current()
		w.Header().Set("Content-Type", "application/json")
		if !snap.Overall {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(snap)
	}
}
