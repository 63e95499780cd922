package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilder_Environment_Prefixes(t *testing.T) {
	tests := []struct {
		name           string
		environment    string
		expectedPrefix string
	}{
		{
			name:           "Production environment should use prod prefix",
			environment:    "production",
			expectedPrefix: "prod",
		},
		{
			name:           "Development environment should use staging prefix",
			environment:    "development",
			expectedPrefix: "staging",
		},
		{
			name:           "Local environment should use staging prefix",
			environment:    "LOCAL",
			expectedPrefix: "staging",
		},
		{
			name:           "Test environment keeps its own prefix",
			environment:    "test",
			expectedPrefix: "test",
		},
		{
			name:           "Unknown environment should default to prod prefix",
			environment:    "unknown",
			expectedPrefix: "prod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedPrefix, NewKeyBuilder(tt.environment).GetPrefix())
		})
	}
}

func TestKeyBuilder_KeyVettingAction(t *testing.T) {
	kb := NewKeyBuilder("production")

	assert.Equal(t, "prod:vetting:acme-relief:action:abc", kb.KeyVettingAction("ACME-Relief", "abc"))
	assert.Equal(t, "prod:vetting:acme-relief:event:7:generation", kb.KeyVettingGeneration("ACME-Relief", 7))
	assert.Equal(t, "prod:raw", kb.BuildKey("raw"))
}
