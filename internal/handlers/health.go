package handlers

import (
	"context"
	"net/http"
	"os"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// PresenceStats summarizes live socket sessions on this instance.
type PresenceStats struct {
	Sessions   int `json:"sessions"`
	Identities int `json:"identities"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Instance  string           `json:"instance,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Presence  PresenceStats    `json:"presence"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint. Redis is optional, so it only
// degrades health when configured and unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.store != nil {
		start := time.Now()
		if err := h.store.Ping(ctx); err != nil {
			checks["database"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["database"] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	} else {
		checks["database"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	if h.redis != nil {
		start := time.Now()
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["redis"] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	var presence PresenceStats
	if h.registry != nil {
		presence = PresenceStats{Sessions: h.registry.Count(), Identities: h.registry.Rooms()}
	}

	hostname, _ := os.Hostname()
	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Instance:  hostname,
		Checks:    checks,
		Presence:  presence,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "landchat",
		Version: version,
	})
}
