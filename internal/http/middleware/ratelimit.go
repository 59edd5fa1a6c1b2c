package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/ratelimit"
)

// RateLimit enforces the tiered fixed-window budgets. Authenticated requests
// count per user, anonymous ones per client IP, so NAT'd users behind one IP
// do not share a budget once they log in.
//
// A store failure lets the request through with a warning. Shedding traffic
// because the counter backend blinked would turn a rate-limiter outage into a
// full API outage.
func RateLimit(limiter *ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}

	return func(c *gin.Context) {
		tier := tierFor(c.Request.Method, c.Request.URL.Path)
		key := clientKey(c)

		result, err := limiter.Allow(c.Request.Context(), key, tier)
		if err != nil {
			logger.Warn("rate limit check failed",
				zap.String("client_key", key),
				zap.String("tier", string(tier)),
				zap.Error(err))
			c.Next()
			return
		}

		if result.Limit > 0 {
			header := c.Writer.Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}

		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many requests. Please slow down.",
			})
			return
		}

		c.Next()
	}
}

// clientKey prefers the authenticated user identity and falls back to the
// client IP for anonymous traffic.
func clientKey(c *gin.Context) string {
	if principal, ok := GetPrincipal(c); ok {
		return "user:" + principal.UserID.String()
	}
	return "ip:" + c.ClientIP()
}

// tierFor buckets requests: credential endpoints get the strict AUTH budget,
// everything else splits by read versus write.
func tierFor(method, path string) ratelimit.Tier {
	if strings.HasPrefix(path, "/api/auth/") && method == http.MethodPost {
		return ratelimit.TierAuth
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ratelimit.TierAPIRead
	default:
		return ratelimit.TierAPIWrite
	}
}

func retryAfterSeconds(result ratelimit.Result) int {
	seconds := int(time.Until(result.ResetAt).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
