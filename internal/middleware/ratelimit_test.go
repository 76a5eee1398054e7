package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	t.Run("bypassed outside production", func(t *testing.T) {
		for _, env := range []string{"test", "development"} {
			t.Setenv("APP_ENV", env)
			allowed, err := CheckRateLimit(context.Background(), nil, "r", "1", 1, time.Minute)
			assert.NoError(t, err)
			assert.True(t, allowed, env)
		}
	})

	t.Run("nil redis errors in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		allowed, err := CheckRateLimit(context.Background(), nil, "r", "1", 1, time.Minute)
		assert.ErrorIs(t, err, ErrNoLimiterStore)
		assert.False(t, allowed)
	})

	t.Run("counts within window", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newRedis(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, err := CheckRateLimit(ctx, rdb, "approve", "user:1", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := CheckRateLimit(ctx, rdb, "approve", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.True(t, mr.Exists("rl:approve:user:1"))
		mr.FastForward(2 * time.Minute)
		allowed, err = CheckRateLimit(ctx, rdb, "approve", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestHit_Window(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newRedis(t)
	ctx := context.Background()

	w, err := Hit(ctx, rdb, "submit_request", "user:9", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, w.Allowed)
	assert.Equal(t, 2, w.Remaining)
	assert.Equal(t, time.Minute, mr.TTL("rl:submit_request:user:9"))

	mr.FastForward(20 * time.Second)
	w, err = Hit(ctx, rdb, "submit_request", "user:9", 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Remaining)
	assert.Equal(t, 40*time.Second, w.ResetIn)

	for i := 0; i < 2; i++ {
		w, err = Hit(ctx, rdb, "submit_request", "user:9", 3, time.Minute)
		require.NoError(t, err)
	}
	assert.False(t, w.Allowed)
	assert.Zero(t, w.Remaining)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("bypass in test mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail open with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail closed with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/sensitive", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("limit exceeded returns 429", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newRedis(t)
		app := fiber.New()
		app.Get("/limited", RateLimit(rdb, 1, time.Minute, "limited"), handler)

		first, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, first.StatusCode)
		_ = first.Body.Close()

		assert.Equal(t, "1", first.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", first.Header.Get("X-RateLimit-Remaining"))

		second, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
		assert.Equal(t, "60", second.Header.Get(fiber.HeaderRetryAfter))
		_ = second.Body.Close()
	})
}
