package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "Invalid URL", url: "invalid://url"},
		{name: "Empty URL", url: ""},
		{name: "Unreachable server", url: "redis://127.0.0.1:1/0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, "test", nil)
			assert.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestClient_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "test:key", "value", time.Minute))

	val, err := client.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, "value", val)
	assert.Greater(t, mr.TTL("test:key"), time.Duration(0))

	_, err = client.Get(ctx, "test:missing")
	assert.ErrorIs(t, err, Nil)
}

func TestClient_SetNX(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "test:once", "1", TTLActionInFlight)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "test:once", "2", TTLActionInFlight)
	require.NoError(t, err)
	assert.False(t, ok)

	val, _ := mr.Get("test:once")
	assert.Equal(t, "1", val)
}

func TestClient_Incr(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	val, err := client.Incr(ctx, "test:counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = client.Incr(ctx, "test:counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	stored, _ := mr.Get("test:counter")
	assert.Equal(t, "2", stored)
}

func TestClient_DeleteExpire(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	mr.Set("test:a", "1")
	mr.Set("test:b", "2")

	require.NoError(t, client.Expire(ctx, "test:a", time.Hour))
	assert.Greater(t, mr.TTL("test:a"), time.Duration(0))

	require.NoError(t, client.Delete(ctx, "test:a", "test:b", "test:nonexistent"))
	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
}

func TestClient_Health(t *testing.T) {
	mr, client := setupTestRedis(t)

	assert.NoError(t, client.Health(context.Background()))

	mr.Close()
	assert.Error(t, client.Health(context.Background()))
}
