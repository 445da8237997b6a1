package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/discourse/discourse-invite-tokens/internal/config"
)

const keyRedeemIP = "invite:redeem:ip:%s"

// RedeemLimiter throttles redemption attempts per client IP so invite
// tokens cannot be brute-forced. A nil or disabled limiter allows
// everything.
type RedeemLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewRedeemLimiter(cfg config.Config) (*RedeemLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.RedeemRate <= 0 || limitCfg.RedeemBurst <= 0 {
		return nil, errors.New("redeem rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &RedeemLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.RedeemRate,
		burst:   limitCfg.RedeemBurst,
	}, nil
}

func (l *RedeemLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *RedeemLimiter) Allow(ctx context.Context, clientIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRedeemIP, strings.TrimSpace(clientIP)), l.rate, l.burst)
}
