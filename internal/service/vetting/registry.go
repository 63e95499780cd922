package vetting

import (
	"context"
	"sync"

	"portal-agent/internal/domain"
	"portal-agent/internal/service"
	"portal-agent/pkg/logger"
)

// Registry hands out one controller per event for the current session
type Registry struct {
	services *service.Services
	policy   UnknownStatusPolicy
	logger   *logger.Logger

	mu          sync.Mutex
	session     *domain.Session
	controllers map[int]*Controller
	listeners   []func(eventID int, status domain.CommitteeStatus)
}

// NewRegistry creates a registry bound to a session
func NewRegistry(services *service.Services, session *domain.Session, policy UnknownStatusPolicy, logger *logger.Logger) *Registry {
	return &Registry{
		services:    services,
		session:     session,
		policy:      policy,
		logger:      logger.Component("vetting"),
		controllers: make(map[int]*Controller),
	}
}

// OnStatusChange registers a listener called after every successful
// committee-level action on any event
func (r *Registry) OnStatusChange(fn func(eventID int, status domain.CommitteeStatus)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Get returns the controller for an event, creating it on first use and
// fetching its committee status
func (r *Registry) Get(ctx context.Context, eventID int) *Controller {
	r.mu.Lock()
	if c, ok := r.controllers[eventID]; ok {
		r.mu.Unlock()
		return c
	}

	c := NewController(r.services.Backend, r.services.Toasts, Options{
		EventID:       eventID,
		Tenant:        r.session.TenantSlug,
		Mode:          r.session.VettingMode(),
		UnknownStatus: r.policy,
		Guard:         r.services.Guard,
		OnStatusChange: func(status domain.CommitteeStatus) {
			r.notify(eventID, status)
		},
	}, r.logger)
	r.controllers[eventID] = c
	r.mu.Unlock()

	_, _ = c.FetchCommitteeStatus(ctx)
	return c
}

// Lookup returns the controller for an event if one exists, without
// creating or refreshing it
func (r *Registry) Lookup(eventID int) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[eventID]
	return c, ok
}

// Session returns the session the registry acts for
func (r *Registry) Session() *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Reset drops every controller, used when the session changes
func (r *Registry) Reset(services *service.Services, session *domain.Session) {
	r.mu.Lock()
	r.services = services
	r.session = session
	r.controllers = make(map[int]*Controller)
	r.mu.Unlock()
}

func (r *Registry) notify(eventID int, status domain.CommitteeStatus) {
	r.mu.Lock()
	listeners := make([]func(int, domain.CommitteeStatus), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"event_id": eventID,
		"status":   status,
	}).Info("Committee status changed")

	for _, fn := range listeners {
		fn(eventID, status)
	}
}
