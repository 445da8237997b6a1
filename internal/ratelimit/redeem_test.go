package ratelimit

import (
	"context"
	"testing"

	"github.com/discourse/discourse-invite-tokens/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedeemLimiterDisabled(t *testing.T) {
	limiter, err := NewRedeemLimiter(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, limiter)
}

func TestNewRedeemLimiterRequiresRedisAddr(t *testing.T) {
	_, err := NewRedeemLimiter(config.Config{
		RateLimit: config.RateLimitConfig{
			Enabled:     true,
			RedeemRate:  1,
			RedeemBurst: 10,
		},
	})
	assert.Error(t, err)
}

func TestNewRedeemLimiterRejectsNonPositiveRates(t *testing.T) {
	_, err := NewRedeemLimiter(config.Config{
		RateLimit: config.RateLimitConfig{
			Enabled:   true,
			RedisAddr: "localhost:6379",
		},
	})
	assert.Error(t, err)
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *RedeemLimiter

	assert.False(t, limiter.Enabled())

	allowed, err := limiter.Allow(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, allowed)
}
