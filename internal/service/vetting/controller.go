package vetting

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/internal/service"
	"portal-agent/internal/service/idempotency"
	"portal-agent/pkg/errors"
	"portal-agent/pkg/logger"
)

// Options configures a controller for one event
type Options struct {
	EventID       int
	Tenant        string
	Mode          domain.VettingMode
	UnknownStatus UnknownStatusPolicy
	// OnStatusChange is called after every committee-level action that
	// succeeded, with the refreshed status
	OnStatusChange func(status domain.CommitteeStatus)
	// Guard optionally de-duplicates transitions across agents
	Guard service.ActionGuard
}

// ActionOutcome records the most recent committee-level action
type ActionOutcome struct {
	Action         domain.VettingAction   `json:"action"`
	From           domain.CommitteeStatus `json:"from"`
	IdempotencyKey string                 `json:"idempotency_key"`
	State          domain.MutationState   `json:"state"`
	Error          string                 `json:"error,omitempty"`
	At             time.Time              `json:"at"`
}

// Controller drives the committee to approver handoff for one event and
// keeps the locally cached view of it reconciled with the backend
type Controller struct {
	api    service.VettingAPI
	toasts service.Toaster
	opts   Options
	logger *logger.Logger
	now    func() time.Time

	submitting atomic.Bool

	mu           sync.RWMutex
	status       domain.StatusSnapshot
	participants map[int]domain.Participant
	comments     map[int]domain.ParticipantComment
	template     domain.EmailTemplate
	lastAction   *ActionOutcome
}

// NewController creates a controller. The initial status is the one
// supplied in the mode, usually unknown until the first fetch.
func NewController(api service.VettingAPI, toasts service.Toaster, opts Options, log *logger.Logger) *Controller {
	if opts.UnknownStatus == "" {
		opts.UnknownStatus = FailOpen
	}
	return &Controller{
		api:    api,
		toasts: toasts,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"event_id": opts.EventID, "tenant": opts.Tenant}),
		now:    time.Now,
		status: domain.StatusSnapshot{
			Status: opts.Mode.SubmissionStatus,
			State:  domain.MutationConfirmed,
		},
		participants: make(map[int]domain.Participant),
		comments:     make(map[int]domain.ParticipantComment),
		template:     DefaultEmailTemplate(),
	}
}

// EventID returns the event this controller manages
func (c *Controller) EventID() int {
	return c.opts.EventID
}

// Status returns the committee status as currently known
func (c *Controller) Status() domain.StatusSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Mode returns the effective vetting mode
func (c *Controller) Mode() domain.VettingMode {
	return EffectiveMode(c.opts.Mode, c.Status().Status, c.opts.UnknownStatus)
}

// CanEdit reports the effective edit permission
func (c *Controller) CanEdit() bool {
	return c.Mode().CanEdit
}

// Submitting reports whether a committee-level action is in flight
func (c *Controller) Submitting() bool {
	return c.submitting.Load()
}

// LastAction returns the outcome of the most recent committee-level action
func (c *Controller) LastAction() *ActionOutcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastAction == nil {
		return nil
	}
	out := *c.lastAction
	return &out
}

// Comments returns a copy of the comment cache
func (c *Controller) Comments() map[int]domain.ParticipantComment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]domain.ParticipantComment, len(c.comments))
	for id, comment := range c.comments {
		out[id] = comment
	}
	return out
}

// Participants returns the cached participant records
func (c *Controller) Participants() []domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	return out
}

// EmailTemplate returns the current approval email template
func (c *Controller) EmailTemplate() domain.EmailTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.template
}

// SetEmailTemplate replaces the local draft without saving it
func (c *Controller) SetEmailTemplate(tpl domain.EmailTemplate) {
	c.mu.Lock()
	c.template = tpl
	c.mu.Unlock()
}

// FetchCommitteeStatus reads the authoritative status. On failure the
// status becomes unknown, which the unknown status policy then resolves.
func (c *Controller) FetchCommitteeStatus(ctx context.Context) (domain.CommitteeStatus, error) {
	status, err := c.api.GetCommitteeStatus(ctx, c.opts.EventID)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to fetch committee status, treating as unknown")
		status = domain.StatusUnknown
	}

	c.mu.Lock()
	c.status = domain.StatusSnapshot{Status: status, State: domain.MutationConfirmed, UpdatedAt: c.now().UTC()}
	c.mu.Unlock()

	return status, err
}

// LoadParticipants replaces the participant and comment caches with server
// state
func (c *Controller) LoadParticipants(ctx context.Context) error {
	participants, err := c.api.ListParticipants(ctx, c.opts.EventID)
	if err != nil {
		c.logger.WithError(err).Error("Failed to load participants")
		c.toasts.Error("Error", userMessage(err, "Failed to load participants"))
		return err
	}

	byID := make(map[int]domain.Participant, len(participants))
	comments := make(map[int]domain.ParticipantComment, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
		if p.VettingComment != "" {
			comments[p.ID] = domain.ParticipantComment{Text: p.VettingComment, State: domain.MutationConfirmed}
		}
	}

	c.mu.Lock()
	c.participants = byID
	c.comments = comments
	c.mu.Unlock()

	c.logger.WithField("participants", len(participants)).Debug("Participants loaded")
	return nil
}

// HandleCommentChange stores a committee comment for a participant. Blank
// comments are ignored. The visible comment changes only once the backend
// has acknowledged it.
func (c *Controller) HandleCommentChange(ctx context.Context, participantID int, comment string) error {
	if strings.TrimSpace(comment) == "" {
		return nil
	}

	if !c.CanEdit() {
		err := errors.NewPermissionError("Comments cannot be changed in the current vetting phase")
		c.toasts.Error("Not allowed", err.Message)
		return err
	}

	c.mu.Lock()
	participant, ok := c.participants[participantID]
	if !ok {
		c.mu.Unlock()
		return errors.NewNotFoundError("Participant is not loaded")
	}
	entry := c.comments[participantID]
	entry.Pending = comment
	entry.State = domain.MutationPending
	c.comments[participantID] = entry
	c.mu.Unlock()

	err := c.api.UpdateParticipantVetting(ctx, participantID, participant.Status, comment)

	c.mu.Lock()
	entry = c.comments[participantID]
	entry.Pending = ""
	if err != nil {
		entry.State = domain.MutationRolledBack
	} else {
		entry.Text = comment
		entry.State = domain.MutationConfirmed
		if p, ok := c.participants[participantID]; ok {
			p.VettingComment = comment
			c.participants[participantID] = p
		}
	}
	c.comments[participantID] = entry
	c.mu.Unlock()

	if err != nil {
		c.logger.WithError(err).WithField("participant_id", participantID).Error("Failed to save comment")
		c.toasts.Error("Error", userMessage(err, "Failed to save comment"))
		return err
	}
	return nil
}

// LoadEmailTemplate fetches the stored approval template. A missing or
// unreadable template falls back to the default without reporting an
// error.
func (c *Controller) LoadEmailTemplate(ctx context.Context) (domain.EmailTemplate, error) {
	if !c.opts.Mode.IsVettingApprover {
		return domain.EmailTemplate{}, errors.NewPermissionError("Only vetting approvers can manage the email template")
	}

	tpl := DefaultEmailTemplate()
	stored, err := c.api.GetEmailTemplate(ctx, c.opts.EventID)
	switch {
	case err != nil:
		c.logger.WithError(err).Debug("No stored email template, using default")
	case stored == nil || (stored.Subject == "" && stored.Body == ""):
		c.logger.Debug("Stored email template is empty, using default")
	default:
		tpl = *stored
	}

	c.SetEmailTemplate(tpl)
	return tpl, nil
}

// SaveEmailTemplate stores the approval template
func (c *Controller) SaveEmailTemplate(ctx context.Context, tpl domain.EmailTemplate) error {
	if !c.opts.Mode.IsVettingApprover {
		err := errors.NewPermissionError("Only vetting approvers can manage the email template")
		c.toasts.Error("Not allowed", err.Message)
		return err
	}
	if strings.TrimSpace(tpl.Subject) == "" || strings.TrimSpace(tpl.Body) == "" {
		err := errors.NewValidationError("Email subject and body are required", nil)
		c.toasts.Error("Error", err.Message)
		return err
	}

	if err := c.api.SaveEmailTemplate(ctx, c.opts.EventID, tpl); err != nil {
		c.logger.WithError(err).Error("Failed to save email template")
		c.toasts.Error("Error", userMessage(err, "Failed to save email template"))
		return err
	}

	c.SetEmailTemplate(tpl)
	c.toasts.Success("Success", "Email template saved")
	return nil
}

// PreviewEmailTemplate renders the current template for one participant
func (c *Controller) PreviewEmailTemplate(vars map[string]string, selected bool) domain.EmailTemplate {
	return RenderPreview(c.EmailTemplate(), vars, selected)
}

// SubmitForApproval hands the committee's selection to the approver
func (c *Controller) SubmitForApproval(ctx context.Context) error {
	return c.transition(ctx, transition{
		action:     domain.ActionSubmit,
		allowed:    c.opts.Mode.IsVettingCommittee,
		deniedMsg:  "Only vetting committee members can submit selections",
		optimistic: domain.StatusPendingApproval,
		call: func(ctx context.Context, key string) error {
			return c.api.SubmitForApproval(ctx, c.opts.EventID, key)
		},
		successMsg:  "Selections submitted for approval",
		fallbackMsg: "Failed to submit for approval",
	})
}

// ApproveVetting finalizes the selection. The current email template goes
// with the request so the backend sends notifications as part of the same
// transition.
func (c *Controller) ApproveVetting(ctx context.Context) error {
	tpl := c.EmailTemplate()
	return c.transition(ctx, transition{
		action:     domain.ActionApprove,
		allowed:    c.opts.Mode.IsVettingApprover,
		deniedMsg:  "Only vetting approvers can approve selections",
		optimistic: domain.StatusApproved,
		call: func(ctx context.Context, key string) error {
			return c.api.ApproveVetting(ctx, c.opts.EventID, tpl, key)
		},
		successMsg:  "Vetting approved and notification emails sent",
		fallbackMsg: "Failed to approve vetting",
	})
}

// CancelApproval reopens the selection from any phase. It is the manual
// escape hatch for a mis-submitted batch.
func (c *Controller) CancelApproval(ctx context.Context) error {
	return c.transition(ctx, transition{
		action:     domain.ActionCancel,
		allowed:    true,
		optimistic: domain.StatusOpen,
		call: func(ctx context.Context, key string) error {
			return c.api.CancelApproval(ctx, c.opts.EventID, key)
		},
		successMsg:  "Approval cancelled, selections reopened",
		fallbackMsg: "Failed to cancel approval",
	})
}

type transition struct {
	action      domain.VettingAction
	allowed     bool
	deniedMsg   string
	optimistic  domain.CommitteeStatus
	call        func(ctx context.Context, key string) error
	successMsg  string
	fallbackMsg string
}

func (c *Controller) transition(ctx context.Context, t transition) error {
	log := c.logger.WithField("action", t.action)

	if !t.allowed {
		err := errors.NewPermissionError(t.deniedMsg)
		c.toasts.Error("Not allowed", err.Message)
		return err
	}

	if !c.submitting.CompareAndSwap(false, true) {
		return errors.NewConflictError("Another vetting action is in progress")
	}
	defer c.submitting.Store(false)

	previous := c.Status()
	key := c.actionKey(t.action, previous.Status)

	var lease string
	if c.opts.Guard != nil {
		claimed, ok, err := c.opts.Guard.Acquire(ctx, c.opts.EventID, string(t.action), string(previous.Status))
		switch {
		case err != nil:
			log.WithError(err).Warn("Action guard unavailable, continuing without it")
		case !ok:
			c.toasts.Info("Already submitted", "This action is already being processed")
			return errors.NewConflictError("This action was already submitted")
		default:
			lease = claimed
		}
	}

	c.mu.Lock()
	c.status = domain.StatusSnapshot{Status: t.optimistic, State: domain.MutationPending, UpdatedAt: c.now().UTC()}
	c.lastAction = &ActionOutcome{Action: t.action, From: previous.Status, IdempotencyKey: key, State: domain.MutationPending, At: c.now().UTC()}
	c.mu.Unlock()

	if err := t.call(ctx, key); err != nil {
		log.WithError(err).Error("Vetting action failed")

		c.mu.Lock()
		c.status = domain.StatusSnapshot{Status: previous.Status, State: domain.MutationRolledBack, UpdatedAt: c.now().UTC()}
		c.lastAction.State = domain.MutationRolledBack
		c.lastAction.Error = err.Error()
		c.mu.Unlock()

		if lease != "" {
			if relErr := c.opts.Guard.Release(ctx, lease); relErr != nil {
				log.WithError(relErr).Warn("Failed to release action key")
			}
		}

		c.toasts.Error("Error", userMessage(err, t.fallbackMsg))
		// Reconcile with whatever the backend now holds
		_, _ = c.FetchCommitteeStatus(ctx)
		return err
	}

	if lease != "" {
		if err := c.opts.Guard.Complete(ctx, c.opts.EventID, lease); err != nil {
			log.WithError(err).Warn("Failed to mark action key complete")
		}
	}

	status, _ := c.FetchCommitteeStatus(ctx)

	c.mu.Lock()
	c.lastAction.State = domain.MutationConfirmed
	c.mu.Unlock()

	log.WithField("status", status).Info("Vetting action completed")
	c.toasts.Success("Success", t.successMsg)
	if c.opts.OnStatusChange != nil {
		c.opts.OnStatusChange(status)
	}
	return nil
}

// actionKey reuses the key of a rolled back attempt of the same action from
// the same status, since the backend may have applied it before failing.
// Any other action gets a fresh key.
func (c *Controller) actionKey(action domain.VettingAction, from domain.CommitteeStatus) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.lastAction
	if last != nil && last.State == domain.MutationRolledBack && last.Action == action && last.From == from {
		return last.IdempotencyKey
	}
	return idempotency.NewKey()
}

// userMessage prefers the backend's own message and falls back to a static
// one when the backend gave none
func userMessage(err error, fallback string) string {
	appErr := errors.As(err)
	if appErr.Type == errors.ErrorTypeInternal {
		return fallback
	}
	if _, isFallback := appErr.Details["fallback"]; isFallback {
		return fallback
	}
	if appErr.Message == "" {
		return fallback
	}
	return appErr.Message
}
