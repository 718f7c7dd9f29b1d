package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status        string                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	Database      string                 `json:"database"`
	Subscriptions int                    `json:"activeSubscriptions"`
	Songs         int                    `json:"songCount"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (ps *PlaylistServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:        "healthy",
		Timestamp:     time.Now(),
		Database:      "ok",
		Subscriptions: ps.registry.Count(),
		Details:       make(map[string]interface{}),
	}

	// Check database connectivity
	if err := ps.db.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details["database_error"] = err.Error()
	}

	// Get song count
	count, err := ps.gw.CountSongs(ctx)
	if err != nil {
		health.Details["song_count_error"] = err.Error()
	} else {
		health.Songs = count
	}

	if streams := ps.registry.CountByStream(); len(streams) > 0 {
		health.Details["streams"] = streams
	}

	// Set appropriate HTTP status code
	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	ps.respondJSON(w, health)
}
