package handler

import (
	"net/http"
	"strings"

	"portal-agent/internal/container"
	"portal-agent/internal/domain"
	"portal-agent/internal/middleware"
	"portal-agent/pkg/errors"

	"github.com/go-chi/chi/v5"
)

// SessionHandler exposes the session the agent acts for
type SessionHandler struct {
	container *container.Container
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(container *container.Container) *SessionHandler {
	return &SessionHandler{container: container}
}

// RegisterRoutes mounts the session routes. Replacing the session requires
// the token currently held.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.With(middleware.RequireCurrentToken(h.container.Session, h.container.GetLogger())).
		Put("/session", h.UpdateSession)
}

type sessionResponse struct {
	*domain.Session
	Mode domain.VettingMode `json:"vetting_mode"`
}

// UpdateSessionRequest switches the agent to another token or tenant
type UpdateSessionRequest struct {
	Token  string `json:"token"`
	Tenant string `json:"tenant"`
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session := h.container.Session()
	respondJSON(w, http.StatusOK, sessionResponse{Session: session, Mode: session.VettingMode()})
}

// UpdateSession handles PUT /api/v1/session
func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req UpdateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.container.GetLogger())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondError(w, r, errors.NewValidationError("Token is required", nil), h.container.GetLogger())
		return
	}
	if req.Tenant == "" {
		req.Tenant = h.container.Session().TenantSlug
	}

	session, err := h.container.UpdateSession(r.Context(), req.Token, req.Tenant)
	if err != nil {
		respondError(w, r, err, h.container.GetLogger())
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Session: session, Mode: session.VettingMode()})
}
