package domain

import (
	"strings"
)

// VettingRole is the normalized role of a portal user with respect to
// participant vetting. Raw role strings are parsed once, at the session
// boundary, and nothing else in the agent compares role strings.
type VettingRole string

const (
	RoleVettingCommittee VettingRole = "committee"
	RoleVettingApprover  VettingRole = "approver"
	RoleAdmin            VettingRole = "admin"
	RoleViewer           VettingRole = "viewer"
)

// ParseVettingRole maps a backend role string onto a VettingRole. The
// backend mixes cases and separators ("VETTING_COMMITTEE",
// "vetting-approver", "Super Admin"), so the input is folded first.
func ParseVettingRole(raw string) VettingRole {
	folded := strings.ToUpper(strings.TrimSpace(raw))
	folded = strings.NewReplacer("-", "_", " ", "_").Replace(folded)

	switch {
	case folded == "":
		return RoleViewer
	case strings.Contains(folded, "VETTING_COMMITTEE") || folded == "COMMITTEE":
		return RoleVettingCommittee
	case strings.Contains(folded, "VETTING_APPROVER") || folded == "APPROVER":
		return RoleVettingApprover
	case strings.Contains(folded, "ADMIN"):
		return RoleAdmin
	default:
		return RoleViewer
	}
}

// ParseVettingRoles parses and de-duplicates a list of backend roles
func ParseVettingRoles(raw []string) []VettingRole {
	seen := make(map[VettingRole]bool, len(raw))
	roles := make([]VettingRole, 0, len(raw))
	for _, r := range raw {
		role := ParseVettingRole(r)
		if role == RoleViewer || seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		roles = append(roles, RoleViewer)
	}
	return roles
}
