package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/pkg/response"
	"go.uber.org/zap"
)

const rateLimitWindow = time.Minute

// WindowCounter counts hits on a key within a fixed expiry window.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimit caps each client IP at limit requests per minute on the routes it
// wraps. Counter failures let the request through.
func RateLimit(counter WindowCounter, limit int, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		now := time.Now()
		window := now.Unix() / int64(rateLimitWindow/time.Second)
		key := fmt.Sprintf("wikiquiz:rate_limit:%s:%s:%d", c.FullPath(), ip, window)

		count, err := counter.IncrWindow(c.Request.Context(), key, rateLimitWindow+time.Second)
		if err != nil {
			log.Warn("rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(limit) {
			retry := rateLimitWindow - time.Duration(now.Unix()%int64(rateLimitWindow/time.Second))*time.Second
			c.Header("Retry-After", strconv.Itoa(int(retry/time.Second)))
			response.TooManyRequests(c)
			return
		}

		c.Next()
	}
}
