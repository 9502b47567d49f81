package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles reservation traffic with a fixed one-minute window
// per caller, counted in Redis so limits hold across instances.
type RateLimiter struct {
	redis *redis.Client
	limit int
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: perMinute}
}

// ReserveLimit is a route middleware for the reservation endpoint.
// Authenticated callers are keyed by user id, anonymous ones by IP.
func (r *RateLimiter) ReserveLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		key := fmt.Sprintf("ratelimit:reserve:%s", callerKey(e))

		count, err := r.redis.Incr(e.Request.Context(), key).Result()
		if err != nil {
			// Redis down: let the request through rather than block sales.
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(e.Request.Context(), key, time.Minute)
		}
		if int(count) > r.limit {
			return apis.NewApiError(http.StatusTooManyRequests, "Too many reservation attempts. Try again shortly.", nil)
		}

		return e.Next()
	}
}

// AntiBot rejects requests with obvious automation user agents.
func (r *RateLimiter) AntiBot() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ua := strings.ToLower(e.Request.Header.Get("User-Agent"))
		for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
			if strings.Contains(ua, pattern) {
				return apis.NewForbiddenError("Access denied.", nil)
			}
		}
		return e.Next()
	}
}

func callerKey(e *core.RequestEvent) string {
	if e.Auth != nil {
		return "user:" + e.Auth.Id
	}
	host, _, err := net.SplitHostPort(e.Request.RemoteAddr)
	if err != nil {
		return "ip:" + e.Request.RemoteAddr
	}
	return "ip:" + host
}
