package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "lock:product:p1", lockKey("product:p1"))
	assert.Equal(t, "ratelimit:actor:u1", rateLimitKey("actor:u1"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("product:*"))
	assert.True(t, hasPattern("product:?"))
	assert.False(t, hasPattern("market:events"))
}

func TestPayloadBytes(t *testing.T) {
	b, ok := payloadBytes("abc")
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), b)

	_, ok = payloadBytes(42)
	assert.False(t, ok)
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
}
