package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

type windowCounter struct {
	client *redis.Client
	window time.Duration
}

// hit counts one request against key and reports the count so far together
// with the time left in the current window.
func (c windowCounter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	left := ttl.Val()
	if left < 0 {
		// new counter, or one left behind without an expiry
		if err := c.client.Expire(ctx, key, c.window).Err(); err != nil {
			return 0, 0, err
		}
		left = c.window
	}
	return incr.Val(), left, nil
}

// RateLimitMiddleware counts requests per caller in fixed Redis windows. The
// caller is the authenticated user when known, else the client IP.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	counter := windowCounter{client: redisClient, window: config.Window}
	limit := int64(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIP(r)
			if identity, ok := IdentityFrom(r.Context()); ok {
				clientID = identity.UserID.String()
			}
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientID)

			count, left, err := counter.hit(r.Context(), key)
			if err != nil {
				logger.Error("Rate limit counter unavailable", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(limit-count, 0), 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(left).Unix(), 10))

			if count > limit {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int64("limit", limit),
				)
				h.Set("Retry-After", strconv.Itoa(int(left.Round(time.Second).Seconds())))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
