package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

// ErrNoLimiterStore is returned when limiting is enforced without Redis.
var ErrNoLimiterStore = errors.New("rate limit store not configured")

// Window is the state of one caller's fixed window after a hit.
type Window struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

func limitingEnforced() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return false
	}
	return true
}

// Hit counts one request by id against resource. The counter key lives
// for window from the first hit. Outside production-like environments
// every hit is allowed and Redis is not touched.
func Hit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Window, error) {
	w := Window{Allowed: true, Limit: limit, Remaining: limit, ResetIn: window}
	if !limitingEnforced() {
		return w, nil
	}
	if rdb == nil {
		return Window{Limit: limit}, ErrNoLimiterStore
	}

	key := "rl:" + resource + ":" + id
	var count *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		count = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Window{Limit: limit}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	// A negative TTL means the key was just created or lost its expiry.
	if ttl.Val() < 0 {
		if err := rdb.PExpire(ctx, key, window).Err(); err != nil {
			return Window{Limit: limit}, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	} else {
		w.ResetIn = ttl.Val()
	}

	n := int(count.Val())
	w.Allowed = n <= limit
	w.Remaining = max(limit-n, 0)
	return w, nil
}

// CheckRateLimit reports whether id may make another request to resource.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	w, err := Hit(ctx, rdb, resource, id, limit, window)
	return w.Allowed, err
}

// RateLimit allows limit requests per window for each caller. Callers are
// the authenticated principal when there is one, otherwise the remote IP.
// name overrides the counter's resource, which defaults to the path.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit FailPolicy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if p, ok := CurrentPrincipal(c); ok {
			caller = "user:" + strconv.FormatUint(uint64(p.UserID), 10)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		w, err := Hit(c.UserContext(), rdb, resource, caller, limit, window)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				slog.String("resource", resource),
				slog.Bool("fail_closed", policy == FailClosed),
				slog.String("error", err.Error()))
			if policy == FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "Rate limit unavailable",
					Code:  models.CodeInternal,
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(w.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(w.Remaining))
		if !w.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(w.ResetIn.Round(time.Second)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
