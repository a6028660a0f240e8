package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*OTPLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewOTPLimiter(rdb, max, window), mr
}

func TestOTPLimiterPerEmailWindow(t *testing.T) {
	limiter, mr := newTestLimiter(t, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow(ctx, "x@y.com", ""))
	}
	err := limiter.Allow(ctx, "x@y.com", "")
	assert.ErrorIs(t, err, ErrTooSoon)

	// other emails have their own window
	require.NoError(t, limiter.Allow(ctx, "other@y.com", ""))

	// the window expires and the counter resets
	mr.FastForward(time.Hour + time.Second)
	require.NoError(t, limiter.Allow(ctx, "x@y.com", ""))
}

func TestOTPLimiterPerIPWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Hour)
	ctx := context.Background()

	// distinct emails from the same address still share the IP budget
	require.NoError(t, limiter.Allow(ctx, "a@y.com", "10.0.0.1"))
	require.NoError(t, limiter.Allow(ctx, "b@y.com", "10.0.0.1"))
	err := limiter.Allow(ctx, "c@y.com", "10.0.0.1")
	assert.ErrorIs(t, err, ErrTooSoon)

	require.NoError(t, limiter.Allow(ctx, "d@y.com", "10.0.0.2"))
}

func TestOTPLimiterRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5, time.Hour)
	mr.Close()

	err := limiter.Allow(context.Background(), "x@y.com", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooSoon, "an unavailable limiter is an internal error, not a throttle")
}

func TestIssueOTPHonorsLimiter(t *testing.T) {
	app, _, _ := newTestApp(t)
	limiter, _ := newTestLimiter(t, 2, time.Hour)
	app.otpLimiter = limiter
	ctx := context.Background()

	_, err := app.issueOTP(ctx, "x@y.com", PurposeRegistration, "10.0.0.1")
	require.NoError(t, err)
	_, err = app.issueOTP(ctx, "x@y.com", PurposePasswordReset, "10.0.0.1")
	require.NoError(t, err)
	_, err = app.issueOTP(ctx, "x@y.com", PurposeRegistration, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTooSoon)
}
