// Package ratelimit provides a redis-backed fixed-window rate limiter for
// the API router.
package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Limiter struct {
	rdb    *redis.Client
	logger *zap.Logger
	rate   int           // requests per window
	window time.Duration // window length
}

func NewLimiter(rdb *redis.Client, rate int, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{rdb: rdb, logger: logger, rate: rate, window: window}
}

// Middleware limits each caller (address when authenticated, client IP
// otherwise) to rate requests per window. Redis being unreachable fails
// open so the registry stays available.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("addr")
		if key == "" {
			key = c.ClientIP()
		}
		redisKey := "ratelimit:" + key

		count, err := l.rdb.Incr(c.Request.Context(), redisKey).Result()
		if err != nil {
			l.logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := l.rdb.Expire(c.Request.Context(), redisKey, l.window).Err(); err != nil {
				l.logger.Warn("rate limiter expire", zap.Error(err))
			}
		}
		if count > int64(l.rate) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded: %d requests per %v", l.rate, l.window),
			})
			return
		}
		c.Next()
	}
}
