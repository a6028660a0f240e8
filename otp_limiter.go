package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPLimiter throttles OTP issuance with Redis fixed windows, one keyed by
// email and one by client IP. It guards raw request volume; the per-record
// 60s resend cooldown is enforced separately from the stored issued-at.
type OTPLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewOTPLimiter(rdb *redis.Client, max int, window time.Duration) *OTPLimiter {
	return &OTPLimiter{rdb: rdb, max: max, window: window}
}

func (l *OTPLimiter) Allow(ctx context.Context, email, ip string) error {
	if err := l.enforce(ctx, "otpi:"+email); err != nil {
		return err
	}
	if ip != "" {
		return l.enforce(ctx, "otpip:"+ip)
	}
	return nil
}

func (l *OTPLimiter) enforce(ctx context.Context, key string) error {
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("otp limiter unavailable: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("otp limiter unavailable: %w", err)
		}
	}
	if count > int64(l.max) {
		return ErrTooSoon
	}
	return nil
}
