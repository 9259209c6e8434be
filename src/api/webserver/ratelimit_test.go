package webserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	// the first request leaves the window
	now = now.Add(31 * time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(50 * time.Second)
	rl.Allow("busy")
	now = now.Add(20 * time.Second)
	rl.cleanup()

	assert.NotContains(t, rl.requests, "idle")
	assert.Len(t, rl.requests["busy"], 1)
}
