package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/core/port"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window limits backed by a shared store. The
// store fails open: when it is unreachable the request proceeds and the
// failure is logged.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rule.
func (rl *RateLimiter) RateLimit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Name == "" {
		rule.Name = "default"
	}

	return func(c *gin.Context) {
		if rl.store == nil || rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok || identifier == "" {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", rule.Name, identifier)
		now := rl.now()
		ctx := c.Request.Context()

		if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
			rl.logger.Warn("rate limit trim failed", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}

		count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
		if err != nil {
			rl.logger.Warn("rate limit count failed", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}

		reset := now.Add(rule.Window)
		if oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now); err == nil && hasAttempts {
			reset = oldest.Add(rule.Window)
		}

		if count >= rule.Limit {
			retryAfter := reset.Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
			applyRateLimitHeaders(c, rule.Limit, 0, reset)

			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Writer.Header().Set("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:     fmt.Sprintf("too many requests, try again in %d seconds", seconds),
				RequestID: GetRequestID(c),
			})
			return
		}

		if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
			rl.logger.Warn("rate limit record failed", zap.String("rule", rule.Name), zap.Error(err))
		}

		remaining := rule.Limit - count - 1
		if remaining < 0 {
			remaining = 0
		}
		applyRateLimitHeaders(c, rule.Limit, remaining, reset)

		c.Next()
	}
}

func applyRateLimitHeaders(c *gin.Context, limit, remaining int, reset time.Time) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}
