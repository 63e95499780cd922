package auth

import (
	"strings"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/internal/service"
	"portal-agent/pkg/errors"
	"portal-agent/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// Service implements the SessionService interface. Tokens are issued and
// verified by the portal backend, so only the claims are read here.
type Service struct {
	parser *jwt.Parser
	logger *logger.Logger
}

// NewService creates a new session service
func NewService(logger *logger.Logger) service.SessionService {
	return &Service{
		parser: jwt.NewParser(),
		logger: logger,
	}
}

// Parse builds a session from the bearer token claims
func (s *Service) Parse(token, tenantSlug string) (*domain.Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if !isJWTToken(token) {
		return nil, errors.NewAuthenticationError("Unrecognized token format")
	}
	if tenantSlug == "" {
		return nil, errors.NewValidationError("Tenant is required", nil)
	}

	claims := jwt.MapClaims{}
	if _, _, err := s.parser.ParseUnverified(token, claims); err != nil {
		s.logger.WithError(err).Error("Failed to read token claims")
		return nil, errors.NewAuthenticationError("Invalid token")
	}

	session := &domain.Session{
		UserID:     getStringValue(claims, "sub"),
		Email:      getStringValue(claims, "email"),
		TenantSlug: tenantSlug,
		Roles:      domain.ParseVettingRoles(rolesFromClaims(claims)),
		Token:      token,
	}
	if session.UserID == "" {
		session.UserID = session.Email
	}
	if session.UserID == "" {
		return nil, errors.NewAuthenticationError("Invalid token: no user identifier")
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt := exp.Time
		session.ExpiresAt = &expiresAt
		if session.Expired(time.Now()) {
			s.logger.WithField("expired_at", expiresAt).Warn("Session token already expired, backend calls will be rejected")
		}
	}

	if claimTenant := getStringValue(claims, "tenant"); claimTenant != "" && !strings.EqualFold(claimTenant, tenantSlug) {
		s.logger.WithFields(map[string]interface{}{
			"token_tenant":      claimTenant,
			"configured_tenant": tenantSlug,
		}).Warn("Token tenant differs from configured tenant")
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": session.UserID,
		"tenant":  session.TenantSlug,
		"roles":   session.Roles,
	}).Info("Session established")

	return session, nil
}

// rolesFromClaims accepts "role", "roles" as a list, or "roles" as a
// comma separated string
func rolesFromClaims(claims jwt.MapClaims) []string {
	var roles []string
	if role := getStringValue(claims, "role"); role != "" {
		roles = append(roles, strings.Split(role, ",")...)
	}
	switch v := claims["roles"].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
	case string:
		roles = append(roles, strings.Split(v, ",")...)
	}
	return roles
}

// isJWTToken checks for the three dot separated segments of a JWT
func isJWTToken(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts[:2] {
		if part == "" {
			return false
		}
	}
	return true
}

func getStringValue(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}
