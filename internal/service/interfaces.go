package service

import (
	"context"

	"portal-agent/internal/domain"
)

// SessionService turns a bearer token into a normalized session
type SessionService interface {
	// Parse reads the token claims and normalizes roles exactly once
	Parse(token, tenantSlug string) (*domain.Session, error)
}

// VettingAPI is the portal backend as seen by the vetting workflow. Every
// call is a single request with no retry.
type VettingAPI interface {
	// GetCommitteeStatus returns the committee status for an event
	GetCommitteeStatus(ctx context.Context, eventID int) (domain.CommitteeStatus, error)

	// SubmitForApproval moves the committee selection to pending_approval
	SubmitForApproval(ctx context.Context, eventID int, idempotencyKey string) error

	// ApproveVetting finalizes the selection and dispatches participant emails
	ApproveVetting(ctx context.Context, eventID int, template domain.EmailTemplate, idempotencyKey string) error

	// CancelApproval reverts the committee selection to open
	CancelApproval(ctx context.Context, eventID int, idempotencyKey string) error

	// GetEmailTemplate returns the stored approval email template
	GetEmailTemplate(ctx context.Context, eventID int) (*domain.EmailTemplate, error)

	// SaveEmailTemplate stores the approval email template
	SaveEmailTemplate(ctx context.Context, eventID int, template domain.EmailTemplate) error

	// ListParticipants returns the participants of an event
	ListParticipants(ctx context.Context, eventID int) ([]domain.Participant, error)

	// UpdateParticipantVetting stores a participant's status and comment
	UpdateParticipantVetting(ctx context.Context, participantID int, status, comment string) error
}

// Toaster is the side channel through which operations report outcomes
type Toaster interface {
	Success(title, message string)
	Error(title, message string)
	Info(title, message string)
}

// ActionGuard de-duplicates committee transitions across agents sharing a
// tenant
type ActionGuard interface {
	// Acquire claims the transition of an event by action from the observed
	// status. The returned lease names the claim; false means the same
	// transition is already in flight or has just completed.
	Acquire(ctx context.Context, eventID int, action, observedStatus string) (string, bool, error)

	// Complete marks the claim done and lets later transitions of the event
	// claim afresh
	Complete(ctx context.Context, eventID int, lease string) error

	// Release frees the claim so a failed action can be retried
	Release(ctx context.Context, lease string) error
}

// Services aggregates the agent's long-lived services
type Services struct {
	Session SessionService
	Backend VettingAPI
	Toasts  Toaster
	Guard   ActionGuard
}
