package domain

import "time"

// Session is the authenticated portal session the agent acts for
type Session struct {
	UserID     string        `json:"user_id"`
	Email      string        `json:"email"`
	TenantSlug string        `json:"tenant_slug"`
	Roles      []VettingRole `json:"roles"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
	Token      string        `json:"-"`
}

// HasRole reports whether the session carries the given role
func (s *Session) HasRole(role VettingRole) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// VettingMode derives the externally supplied vetting mode for this session.
// Admins may edit outside of the committee/approver handoff.
func (s *Session) VettingMode() VettingMode {
	return VettingMode{
		IsVettingCommittee: s.HasRole(RoleVettingCommittee),
		IsVettingApprover:  s.HasRole(RoleVettingApprover),
		CanEdit:            s.HasRole(RoleAdmin),
	}
}

// Expired reports whether the token expiry has passed
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
