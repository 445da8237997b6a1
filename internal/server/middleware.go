package server

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/discourse/discourse-invite-tokens/internal/actor"
	"github.com/discourse/discourse-invite-tokens/internal/config"
	"go.uber.org/zap"
)

const adminKeyHeader = "X-Admin-Key"

// ActorMiddleware resolves the caller into an authorization actor. The
// host normally fronts this service with its own session layer; the
// admin API key is the minimal stand-in for that.
func ActorMiddleware(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(adminKeyHeader))
		if key != "" && cfg.AdminAPIKey != "" &&
			subtle.ConstantTimeCompare([]byte(key), []byte(cfg.AdminAPIKey)) == 1 {
			ctx := actor.WithActor(c.Request.Context(), actor.Actor{Admin: true})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// RequestLogger emits one structured log line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
