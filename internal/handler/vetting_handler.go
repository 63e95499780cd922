package handler

import (
	"context"
	"net/http"

	"portal-agent/internal/container"
	"portal-agent/internal/domain"
	"portal-agent/internal/middleware"
	"portal-agent/internal/service/vetting"
	"portal-agent/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// VettingHandler drives the committee workflow of one event at a time
type VettingHandler struct {
	container *container.Container
	logger    *logger.Logger
}

// NewVettingHandler creates a new vetting handler
func NewVettingHandler(container *container.Container) *VettingHandler {
	return &VettingHandler{
		container: container,
		logger:    container.GetLogger().Component("vetting_handler"),
	}
}

// RegisterRoutes mounts the vetting routes under /events/{eventId}/vetting
func (h *VettingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/events/{eventId}/vetting", func(r chi.Router) {
		r.Get("/", h.GetState)
		r.Post("/status/refresh", h.RefreshStatus)
		r.Get("/participants", h.ListParticipants)
		r.Put("/participants/{participantId}/comment", h.UpdateComment)
		r.Post("/submit", h.Submit)
		r.Post("/approve", h.Approve)
		r.Post("/cancel", h.Cancel)
		r.Get("/email-template", h.GetEmailTemplate)
		r.Put("/email-template", h.SaveEmailTemplate)
		r.Post("/email-template/preview", h.PreviewEmailTemplate)
	})
}

// VettingState is the controller as seen by the control API
type VettingState struct {
	EventID    int                               `json:"event_id"`
	Mode       domain.VettingMode                `json:"mode"`
	Status     domain.StatusSnapshot             `json:"status"`
	Submitting bool                              `json:"submitting"`
	Comments   map[int]domain.ParticipantComment `json:"comments"`
	LastAction *vetting.ActionOutcome            `json:"last_action,omitempty"`
}

// CommentRequest carries a committee comment
type CommentRequest struct {
	Comment string `json:"comment"`
}

// PreviewRequest asks for a rendered template. Template defaults to the
// event's current template.
type PreviewRequest struct {
	Template  *domain.EmailTemplate `json:"template,omitempty"`
	Variables map[string]string     `json:"variables"`
	Selected  bool                  `json:"selected"`
}

func (h *VettingHandler) controller(w http.ResponseWriter, r *http.Request) (*vetting.Controller, bool) {
	eventID, err := intParam(r, "eventId")
	if err != nil {
		respondError(w, r, err, h.logger)
		return nil, false
	}
	return h.container.Vetting.Get(r.Context(), eventID), true
}

func stateOf(c *vetting.Controller) VettingState {
	return VettingState{
		EventID:    c.EventID(),
		Mode:       c.Mode(),
		Status:     c.Status(),
		Submitting: c.Submitting(),
		Comments:   c.Comments(),
		LastAction: c.LastAction(),
	}
}

// GetState handles GET /api/v1/events/{eventId}/vetting
func (h *VettingHandler) GetState(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, stateOf(c))
}

// RefreshStatus handles POST /api/v1/events/{eventId}/vetting/status/refresh.
// A failed fetch is not an error; the status simply becomes unknown.
func (h *VettingHandler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	_, _ = c.FetchCommitteeStatus(r.Context())
	respondJSON(w, http.StatusOK, stateOf(c))
}

// ListParticipants handles GET /api/v1/events/{eventId}/vetting/participants
func (h *VettingHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.LoadParticipants(r.Context()); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"participants": c.Participants(),
		"comments":     c.Comments(),
	})
}

// UpdateComment handles PUT /api/v1/events/{eventId}/vetting/participants/{participantId}/comment
func (h *VettingHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	participantID, err := intParam(r, "participantId")
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	if err := c.HandleCommentChange(r.Context(), participantID, req.Comment); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"participant_id": participantID,
		"comment":        c.Comments()[participantID],
	})
}

// Submit handles POST /api/v1/events/{eventId}/vetting/submit
func (h *VettingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, (*vetting.Controller).SubmitForApproval)
}

// Approve handles POST /api/v1/events/{eventId}/vetting/approve
func (h *VettingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, (*vetting.Controller).ApproveVetting)
}

// Cancel handles POST /api/v1/events/{eventId}/vetting/cancel
func (h *VettingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, (*vetting.Controller).CancelApproval)
}

func (h *VettingHandler) runAction(w http.ResponseWriter, r *http.Request, action func(*vetting.Controller, context.Context) error) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if session := middleware.GetSession(r.Context()); session != nil {
		h.logger.WithFields(map[string]interface{}{
			"event_id":   c.EventID(),
			"tenant":     session.TenantSlug,
			"request_id": middleware.GetRequestID(r.Context()),
		}).Debug("Committee action requested")
	}
	if err := action(c, r.Context()); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, stateOf(c))
}

// GetEmailTemplate handles GET /api/v1/events/{eventId}/vetting/email-template
func (h *VettingHandler) GetEmailTemplate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	tpl, err := c.LoadEmailTemplate(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

// SaveEmailTemplate handles PUT /api/v1/events/{eventId}/vetting/email-template
func (h *VettingHandler) SaveEmailTemplate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	var tpl domain.EmailTemplate
	if err := decodeJSON(r, &tpl); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if err := c.SaveEmailTemplate(r.Context(), tpl); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, c.EmailTemplate())
}

// PreviewEmailTemplate handles POST /api/v1/events/{eventId}/vetting/email-template/preview
func (h *VettingHandler) PreviewEmailTemplate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req PreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	if req.Template != nil {
		respondJSON(w, http.StatusOK, vetting.RenderPreview(*req.Template, req.Variables, req.Selected))
		return
	}
	respondJSON(w, http.StatusOK, c.PreviewEmailTemplate(req.Variables, req.Selected))
}
