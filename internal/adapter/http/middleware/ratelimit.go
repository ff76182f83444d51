package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "nft-marketplace/internal/adapter/storage/redis"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the rate limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"auth_login":     {Limit: 10, Window: time.Minute},
		"mint":           {Limit: 30, Window: time.Minute},
		"registry_write": {Limit: 60, Window: time.Minute},
		"listings_write": {Limit: 30, Window: time.Minute},
		"purchase":       {Limit: 60, Window: time.Minute},
		"accounts_write": {Limit: 20, Window: time.Minute},
		"read":           {Limit: 300, Window: time.Minute},
		"events":         {Limit: 30, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Mount it after JWTAuth to count per address instead of per client IP.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate limit key source.
func extractIdentifier(c *gin.Context) string {
	if addr, ok := CallerAddress(c); ok {
		return addr.Hex()
	}
	return c.ClientIP()
}
