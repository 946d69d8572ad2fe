package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/pkg/response"
)

// Limiter decides whether the request identified by key fits in a fixed window.
// When not allowed, retryAfter is the time until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a fixed-window counter: INCR, EXPIRE on first hit, TTL when over.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLimiter creates a limiter storing counters under prefix.
func NewRedisLimiter(client redis.Cmdable, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	k := l.prefix + ":" + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", k, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}
	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ttl %s: %w", k, err)
	}
	if ttl < 0 {
		// Counter lost its expiry; restore it so the key cannot block forever.
		_ = l.client.Expire(ctx, k, window).Err()
		return false, window, nil
	}
	return false, ttl, nil
}

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *gin.Context) string

// ByClientIP keys requests by client address.
func ByClientIP(c *gin.Context) string { return "ip:" + c.ClientIP() }

// ByUser keys requests by authenticated user, falling back to client address.
func ByUser(c *gin.Context) string {
	if p, ok := Principal(c); ok {
		return "user:" + p.UserID.String()
	}
	return ByClientIP(c)
}

// RateLimit rejects requests over limit per window with 429 and Retry-After.
// Limiter errors are logged and the request is let through.
func RateLimit(l Limiter, name string, limit int, window time.Duration, key KeyFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if l == nil || limit <= 0 {
			c.Next()
			return
		}
		allowed, retryAfter, err := l.Allow(c.Request.Context(), name+":"+key(c), limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("limiter", name), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			response.Error(c, errs.ErrRateLimited, "")
			c.Abort()
			return
		}
		c.Next()
	}
}
