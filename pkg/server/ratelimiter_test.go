package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientRateLimiter_Acquire(t *testing.T) {
	t.Run("should allow requests under the limit", func(t *testing.T) {
		limiter := NewClientRateLimiter(5, 5)
		for i := 0; i < 5; i++ {
			ok, reason := limiter.Acquire()
			assert.True(t, ok)
			assert.Empty(t, reason)
			limiter.Release()
		}
	})

	t.Run("should refuse when the window is full", func(t *testing.T) {
		limiter := NewClientRateLimiter(2, 10)
		limiter.Acquire()
		limiter.Acquire()

		ok, reason := limiter.Acquire()
		assert.False(t, ok)
		assert.Equal(t, "rate limit exceeded", reason)
	})

	t.Run("should refuse too many concurrent requests", func(t *testing.T) {
		limiter := NewClientRateLimiter(100, 1)
		ok, _ := limiter.Acquire()
		assert.True(t, ok)

		ok, reason := limiter.Acquire()
		assert.False(t, ok)
		assert.Equal(t, "too many concurrent requests", reason)

		limiter.Release()
		ok, _ = limiter.Acquire()
		assert.True(t, ok)
	})

	t.Run("should slide the window", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		limiter := NewClientRateLimiter(1, 10)
		limiter.now = func() time.Time { return now }

		ok, _ := limiter.Acquire()
		assert.True(t, ok)
		limiter.Release()

		ok, _ = limiter.Acquire()
		assert.False(t, ok)

		now = now.Add(61 * time.Second)
		ok, _ = limiter.Acquire()
		assert.True(t, ok)
	})
}

func TestClientRateLimiter_Defaults(t *testing.T) {
	limiter := NewClientRateLimiter(0, -1)
	assert.Equal(t, DefaultRequestsPerMinute, limiter.requestsPerMinute)
	assert.Equal(t, DefaultMaxConcurrent, limiter.maxConcurrent)
}

func TestClientRateLimiter_Stats(t *testing.T) {
	limiter := NewClientRateLimiter(10, 10)
	limiter.Acquire()
	limiter.Acquire()
	limiter.Release()

	requests, concurrent := limiter.Stats()
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, concurrent)

	limiter.Release()
	limiter.Release()
	_, concurrent = limiter.Stats()
	assert.Equal(t, 0, concurrent)
}
