package idempotency

import (
	"context"
	"fmt"
	"strconv"

	"portal-agent/internal/service"
	"portal-agent/pkg/logger"
	"portal-agent/pkg/redis"

	"github.com/google/uuid"
)

// NewKey returns the Idempotency-Key of one user-initiated committee
// action. Retries of that action reuse it; a new action gets a new key.
func NewKey() string {
	return uuid.NewString()
}

// Claim names a transition of an event attempted from one observed status
// within one transition generation
func Claim(eventID int, action, observedStatus string, generation int64) string {
	return fmt.Sprintf("%d:%s:%s:g%d", eventID, action, observedStatus, generation)
}

// RedisGuard claims committee transitions in Redis so that several agents
// acting for the same tenant do not issue the same transition twice. Each
// completed transition advances the event's generation, so a later
// transition from the same status (a re-submit after a cancel) claims
// afresh.
type RedisGuard struct {
	redis  *redis.Client
	tenant string
	logger *logger.Logger
}

var _ service.ActionGuard = (*RedisGuard)(nil)

// NewRedisGuard creates a guard scoped to a tenant
func NewRedisGuard(client *redis.Client, tenant string, logger *logger.Logger) *RedisGuard {
	return &RedisGuard{redis: client, tenant: tenant, logger: logger}
}

// Acquire claims the transition while its request is in flight
func (g *RedisGuard) Acquire(ctx context.Context, eventID int, action, observedStatus string) (string, bool, error) {
	generation, err := g.Generation(ctx, eventID)
	if err != nil {
		return "", false, err
	}

	lease := Claim(eventID, action, observedStatus, generation)
	ok, err := g.redis.SetNX(ctx, g.redis.KeyBuilder.KeyVettingAction(g.tenant, lease), "in_flight", redis.TTLActionInFlight)
	if err != nil {
		return "", false, fmt.Errorf("failed to claim action key: %w", err)
	}
	if !ok {
		g.logger.WithField("claim", lease).Info("Duplicate vetting action suppressed")
	}
	return lease, ok, nil
}

// Complete marks the claim done and moves the event to its next generation
func (g *RedisGuard) Complete(ctx context.Context, eventID int, lease string) error {
	if err := g.redis.Set(ctx, g.redis.KeyBuilder.KeyVettingAction(g.tenant, lease), "done", redis.TTLActionCompleted); err != nil {
		return fmt.Errorf("failed to complete action key: %w", err)
	}

	key := g.redis.KeyBuilder.KeyVettingGeneration(g.tenant, eventID)
	if _, err := g.redis.Incr(ctx, key); err != nil {
		return fmt.Errorf("failed to advance transition generation: %w", err)
	}
	if err := g.redis.Expire(ctx, key, redis.TTLGeneration); err != nil {
		g.logger.WithError(err).Warn("Failed to refresh transition generation TTL")
	}
	return nil
}

// Release frees the claim so a failed action can be retried
func (g *RedisGuard) Release(ctx context.Context, lease string) error {
	if err := g.redis.Delete(ctx, g.redis.KeyBuilder.KeyVettingAction(g.tenant, lease)); err != nil {
		return fmt.Errorf("failed to release action key: %w", err)
	}
	return nil
}

// Generation returns how many transitions of the event have completed
func (g *RedisGuard) Generation(ctx context.Context, eventID int) (int64, error) {
	raw, err := g.redis.Get(ctx, g.redis.KeyBuilder.KeyVettingGeneration(g.tenant, eventID))
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read transition generation: %w", err)
	}

	generation, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid transition generation %q: %w", raw, err)
	}
	return generation, nil
}
