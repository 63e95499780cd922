package notify

import "time"

// Reconnect policy
const (
	InitialBackoff       = time.Second
	MaxBackoff           = 30 * time.Second
	MaxReconnectAttempts = 5
)

// Backoff returns the delay before reconnect attempt n (1-based): 1s, 2s,
// 4s, ... capped at MaxBackoff
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the exponent before shifting
	if attempt > 16 {
		return MaxBackoff
	}
	delay := InitialBackoff << (attempt - 1)
	if delay > MaxBackoff {
		delay = MaxBackoff
	}
	return delay
}
