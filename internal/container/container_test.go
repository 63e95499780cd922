package container

import (
	"context"
	"testing"

	"portal-agent/internal/config"
	"portal-agent/internal/domain"
	"portal-agent/internal/service/idempotency"
	"portal-agent/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.org",
		"roles": roles,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Environment:          "test",
		APIURL:               "http://localhost:8000/api/v1",
		Token:                testToken(t, "user-1", "VETTING_COMMITTEE"),
		TenantSlug:           "acme",
		DesktopNotifications: "default",
		UnknownStatusPolicy:  "fail_open",
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		redisURL    string
		expectRedis bool
	}{
		{name: "Container with Redis configured", redisURL: "redis://" + mr.Addr(), expectRedis: true},
		{name: "Container without Redis configured", redisURL: "", expectRedis: false},
		{name: "Container with invalid Redis URL", redisURL: "invalid://redis-url", expectRedis: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.RedisURL = tt.redisURL

			c, err := New(cfg, logger.NewNop())
			require.NoError(t, err)
			require.NotNil(t, c)

			assert.Equal(t, cfg, c.GetConfig())
			assert.NotNil(t, c.GetLogger())
			assert.NotNil(t, c.Vetting)
			assert.NotNil(t, c.Notifier)
			assert.NotNil(t, c.GetServices().Backend)
			assert.Equal(t, tt.expectRedis, c.HasRedis())

			if tt.expectRedis {
				assert.IsType(t, &idempotency.RedisGuard{}, c.GetServices().Guard)
				_ = c.RedisClient.Close()
			} else {
				assert.Nil(t, c.GetServices().Guard)
			}

			session := c.Session()
			assert.Equal(t, "user-1", session.UserID)
			assert.Equal(t, "acme", session.TenantSlug)
			assert.True(t, session.HasRole(domain.RoleVettingCommittee))
		})
	}
}

func TestNew_InvalidSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token = "not-a-jwt"

	_, err := New(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestNew_InvalidPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.UnknownStatusPolicy = "sometimes"

	_, err := New(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestContainer_UpdateSession(t *testing.T) {
	c, err := New(testConfig(t), logger.NewNop())
	require.NoError(t, err)

	before := c.GetServices()

	session, err := c.UpdateSession(context.Background(), testToken(t, "user-2", "VETTING_APPROVER"), "globex")
	require.NoError(t, err)
	assert.Equal(t, "user-2", session.UserID)
	assert.Same(t, session, c.Session())
	assert.Same(t, session, c.Vetting.Session())
	assert.NotSame(t, before, c.GetServices())
	assert.True(t, c.Vetting.Session().VettingMode().IsVettingApprover)

	_, err = c.UpdateSession(context.Background(), "garbage", "globex")
	assert.Error(t, err)
	assert.Equal(t, "user-2", c.Session().UserID, "a rejected token keeps the current session")

	require.NoError(t, c.Notifier.Stop(context.Background()))
}
