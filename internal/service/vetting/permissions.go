package vetting

import (
	"fmt"

	"portal-agent/internal/domain"
)

// UnknownStatusPolicy decides how an unknown committee status gates editing
type UnknownStatusPolicy string

const (
	// FailOpen treats an unknown status as open, so a failed status fetch
	// never locks the committee out
	FailOpen UnknownStatusPolicy = "fail_open"
	// FailClosed treats an unknown status as not editable by anyone
	FailClosed UnknownStatusPolicy = "fail_closed"
)

// ParseUnknownStatusPolicy parses the configured policy
func ParseUnknownStatusPolicy(raw string) (UnknownStatusPolicy, error) {
	switch UnknownStatusPolicy(raw) {
	case FailOpen, "":
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	default:
		return "", fmt.Errorf("unknown status policy %q", raw)
	}
}

// EffectiveCanEdit computes the phase-aware edit permission. A committee
// member may edit only while the selection is open and an approver only
// while it awaits approval, so exactly one side writes at a time. Anyone
// else keeps the supplied permission in every phase except approved: an
// approved selection is never editable, so a user holding neither role
// loses a supplied CanEdit once the selection is approved.
func EffectiveCanEdit(mode domain.VettingMode, status domain.CommitteeStatus) bool {
	var canEdit bool
	switch {
	case mode.IsVettingCommittee:
		canEdit = status == domain.StatusOpen
	case mode.IsVettingApprover:
		canEdit = status == domain.StatusPendingApproval
	default:
		canEdit = mode.CanEdit
	}
	return canEdit && status != domain.StatusApproved
}

// ResolveStatus applies the unknown status policy
func ResolveStatus(status domain.CommitteeStatus, policy UnknownStatusPolicy) domain.CommitteeStatus {
	if status == domain.StatusUnknown && policy != FailClosed {
		return domain.StatusOpen
	}
	return status
}

// EffectiveMode returns the mode with CanEdit and SubmissionStatus
// recomputed from the committee status
func EffectiveMode(mode domain.VettingMode, status domain.CommitteeStatus, policy UnknownStatusPolicy) domain.VettingMode {
	resolved := ResolveStatus(status, policy)

	effective := mode
	effective.SubmissionStatus = resolved
	if resolved == domain.StatusUnknown {
		effective.CanEdit = false
	} else {
		effective.CanEdit = EffectiveCanEdit(mode, resolved)
	}
	return effective
}
