package handler

import (
	"context"
	"net/http"
	"time"

	"portal-agent/internal/container"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Version      string            `json:"version"`
	Service      string            `json:"service"`
	Dependencies map[string]string `json:"dependencies"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	response := HealthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC(),
		Version:      "1.0.0",
		Service:      "portal-agent",
		Dependencies: map[string]string{},
	}

	response.Dependencies["notifications"] = string(h.container.Notifier.State().State)

	if h.container.HasRedis() {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.container.RedisClient.Health(ctx); err != nil {
			logger.WithError(err).Warn("Redis health check failed")
			response.Dependencies["redis"] = "unhealthy"
			response.Status = "degraded"
		} else {
			response.Dependencies["redis"] = "healthy"
		}
	} else {
		response.Dependencies["redis"] = "disabled"
	}

	respondJSON(w, http.StatusOK, response)
}
