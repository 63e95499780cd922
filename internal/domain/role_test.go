package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseVettingRole(t *testing.T) {
	tests := []struct {
		raw  string
		want VettingRole
	}{
		{"VETTING_COMMITTEE", RoleVettingCommittee},
		{"vetting-committee", RoleVettingCommittee},
		{"Vetting Committee", RoleVettingCommittee},
		{"committee", RoleVettingCommittee},
		{"VETTING_APPROVER", RoleVettingApprover},
		{"vetting-approver", RoleVettingApprover},
		{"SUPER_ADMIN", RoleAdmin},
		{"event admin", RoleAdmin},
		{"staff", RoleViewer},
		{"  ", RoleViewer},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVettingRole(tt.raw))
		})
	}
}

func TestParseVettingRoles(t *testing.T) {
	roles := ParseVettingRoles([]string{"VETTING_COMMITTEE", "vetting-committee", "staff", "SUPER_ADMIN"})
	assert.Equal(t, []VettingRole{RoleVettingCommittee, RoleAdmin}, roles)

	assert.Equal(t, []VettingRole{RoleViewer}, ParseVettingRoles(nil))
}

func TestSession_VettingMode(t *testing.T) {
	s := &Session{Roles: []VettingRole{RoleVettingApprover}}
	mode := s.VettingMode()
	assert.False(t, mode.IsVettingCommittee)
	assert.True(t, mode.IsVettingApprover)
	assert.False(t, mode.CanEdit)

	admin := &Session{Roles: []VettingRole{RoleAdmin}}
	assert.True(t, admin.VettingMode().CanEdit)
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	assert.False(t, (&Session{}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: &past}).Expired(now))
}

func TestParseCommitteeStatus(t *testing.T) {
	assert.Equal(t, StatusPendingApproval, ParseCommitteeStatus("pending_approval"))
	assert.Equal(t, StatusUnknown, ParseCommitteeStatus("closed"))
	assert.Equal(t, StatusUnknown, ParseCommitteeStatus(""))
}
