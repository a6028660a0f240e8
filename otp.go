package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
)

// generateOTPCode returns 6 uniform-random ASCII digits, leading zeros kept.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func validOTPFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// issueOTP generates a fresh code for (email, purpose), atomically replacing
// any prior active one, and dispatches it via the mailer. A delivery failure
// leaves the record persisted and returns it alongside ErrDelivery so a
// later resend can still succeed.
func (a *App) issueOTP(ctx context.Context, email string, purpose OTPPurpose, clientIP string) (*OTPRecord, error) {
	return a.issueOTPCounted(ctx, email, purpose, clientIP, 0)
}

func (a *App) issueOTPCounted(ctx context.Context, email string, purpose OTPPurpose, clientIP string, resendCount int) (*OTPRecord, error) {
	email = strings.ToLower(email)
	if a.otpLimiter != nil {
		if err := a.otpLimiter.Allow(ctx, email, clientIP); err != nil {
			return nil, err
		}
	}

	code, err := generateOTPCode()
	if err != nil {
		return nil, err
	}
	now := a.now()
	rec := &OTPRecord{
		Email:       email,
		Purpose:     purpose,
		Code:        code,
		IssuedAt:    now,
		ExpiresAt:   now.Add(a.cfg.OTPTTL),
		ResendCount: resendCount,
	}
	stored, err := a.Store.ReplaceOTP(rec)
	if err != nil {
		return nil, err
	}
	if err := a.Mailer.Send(ctx, email, otpMailSubject(purpose), otpMailBody(code, purpose)); err != nil {
		return stored, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return stored, nil
}

// resendOTP reissues a code, enforcing the server-side cooldown against the
// stored issued-at of the prior active record. The client countdown is not
// trusted.
func (a *App) resendOTP(ctx context.Context, email string, purpose OTPPurpose, clientIP string) (*OTPRecord, error) {
	email = strings.ToLower(email)
	prior, err := a.Store.GetActiveOTP(email, purpose)
	if err != nil {
		return nil, err
	}
	resendCount := 0
	if prior != nil {
		if a.now().Sub(prior.IssuedAt) < a.cfg.OTPResendCooldown {
			return nil, ErrTooSoon
		}
		resendCount = prior.ResendCount + 1
	}
	return a.issueOTPCounted(ctx, email, purpose, clientIP, resendCount)
}

// validateOTP checks a submitted code against the active record and consumes
// it exactly once. Expired records never validate and a consumed record can
// never validate again.
func (a *App) validateOTP(email string, purpose OTPPurpose, submitted string) error {
	if !validOTPFormat(submitted) {
		return ErrInvalidFormat
	}
	rec, err := a.Store.GetActiveOTP(strings.ToLower(email), purpose)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrOTPNotFound
	}
	if a.now().After(rec.ExpiresAt) {
		return ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(submitted)) != 1 {
		return ErrOTPMismatch
	}
	won, err := a.Store.ConsumeOTP(rec.ID)
	if err != nil {
		return err
	}
	if !won {
		// Lost a race against a concurrent validate; the code is spent.
		return ErrOTPNotFound
	}
	return nil
}
