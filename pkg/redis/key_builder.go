package redis

import (
	"fmt"
	"strings"
)

// Key patterns
const (
	// KeyVettingAction holds an idempotency key for a committee transition:
	// vetting:{tenant}:action:{idempotencyKey}
	KeyVettingAction = "vetting:%s:action:%s"

	// KeyVettingGeneration counts completed transitions of one event:
	// vetting:{tenant}:event:{eventId}:generation
	KeyVettingGeneration = "vetting:%s:event:%d:generation"
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	switch strings.ToLower(environment) {
	case "development", "staging", "local":
		prefix = "staging"
	case "test":
		prefix = "test"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyVettingAction scopes a transition claim to a tenant
func (kb *KeyBuilder) KeyVettingAction(tenant, claim string) string {
	return kb.BuildKey(fmt.Sprintf(KeyVettingAction, strings.ToLower(tenant), claim))
}

// KeyVettingGeneration scopes an event's transition counter to a tenant
func (kb *KeyBuilder) KeyVettingGeneration(tenant string, eventID int) string {
	return kb.BuildKey(fmt.Sprintf(KeyVettingGeneration, strings.ToLower(tenant), eventID))
}
