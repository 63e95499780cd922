package domain

import "time"

// CommitteeStatus is the phase of a vetting committee's selection for an event
type CommitteeStatus string

const (
	StatusUnknown         CommitteeStatus = ""
	StatusOpen            CommitteeStatus = "open"
	StatusPendingApproval CommitteeStatus = "pending_approval"
	StatusApproved        CommitteeStatus = "approved"
)

// ParseCommitteeStatus maps a backend status string; anything unrecognised
// is StatusUnknown
func ParseCommitteeStatus(raw string) CommitteeStatus {
	switch CommitteeStatus(raw) {
	case StatusOpen, StatusPendingApproval, StatusApproved:
		return CommitteeStatus(raw)
	default:
		return StatusUnknown
	}
}

// VettingMode is the permission set supplied for a session. CanEdit is the
// externally supplied value; the effective value is recomputed from role and
// committee status.
type VettingMode struct {
	IsVettingCommittee bool            `json:"is_vetting_committee"`
	IsVettingApprover  bool            `json:"is_vetting_approver"`
	CanEdit            bool            `json:"can_edit"`
	SubmissionStatus   CommitteeStatus `json:"submission_status"`
}

// MutationState tags a locally cached value with where it stands relative
// to the server
type MutationState string

const (
	MutationConfirmed  MutationState = "confirmed"
	MutationPending    MutationState = "pending"
	MutationRolledBack MutationState = "rolled_back"
)

// StatusSnapshot is the committee status as the controller currently sees it
type StatusSnapshot struct {
	Status    CommitteeStatus `json:"status"`
	State     MutationState   `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Participant is the slice of a participant record the vetting flow needs
type Participant struct {
	ID             int    `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Status         string `json:"status"`
	VettingComment string `json:"vetting_comments"`
}

// ParticipantComment is a committee comment plus its reconciliation state.
// Text only ever holds a value the server acknowledged.
type ParticipantComment struct {
	Text    string        `json:"text"`
	Pending string        `json:"pending,omitempty"`
	State   MutationState `json:"state"`
}

// EmailTemplate is the approval email sent to participants. Placeholders are
// expanded by the backend at send time.
type EmailTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// VettingAction names a committee-level transition
type VettingAction string

const (
	ActionSubmit  VettingAction = "submit"
	ActionApprove VettingAction = "approve"
	ActionCancel  VettingAction = "cancel"
)
