package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTPCodeFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTPCode()
		require.NoError(t, err)
		require.True(t, validOTPFormat(code), "generated %q", code)
	}
}

func TestValidOTPFormat(t *testing.T) {
	assert.True(t, validOTPFormat("012345"))
	assert.False(t, validOTPFormat("12345"))
	assert.False(t, validOTPFormat("1234567"))
	assert.False(t, validOTPFormat("12a456"))
	assert.False(t, validOTPFormat(""))
	assert.False(t, validOTPFormat("12 456"))
}

func TestIssueAndValidate(t *testing.T) {
	app, mailer, _ := newTestApp(t)
	ctx := context.Background()

	rec, err := app.issueOTP(ctx, "Student@Example.com", PurposeRegistration, "")
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", rec.Email)
	assert.Equal(t, rec.IssuedAt.Add(5*time.Minute), rec.ExpiresAt)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "student@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, rec.Code)

	require.NoError(t, app.validateOTP("student@example.com", PurposeRegistration, rec.Code))

	// consumed codes never validate again
	err = app.validateOTP("student@example.com", PurposeRegistration, rec.Code)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestValidateMalformedCodeFailsFast(t *testing.T) {
	app, _, _ := newTestApp(t)
	err := app.validateOTP("x@y.com", PurposeRegistration, "12345")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	err = app.validateOTP("x@y.com", PurposeRegistration, "abcdef")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestValidateNoActiveCode(t *testing.T) {
	app, _, _ := newTestApp(t)
	err := app.validateOTP("x@y.com", PurposeRegistration, "123456")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestSecondIssueInvalidatesFirst(t *testing.T) {
	app, _, _ := newTestApp(t)
	now := app.now()

	// Fixed codes exercise the store invariant without random collisions.
	first := &OTPRecord{Email: "x@y.com", Purpose: PurposeRegistration, Code: "111111", IssuedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	_, err := app.Store.ReplaceOTP(first)
	require.NoError(t, err)
	second := &OTPRecord{Email: "x@y.com", Purpose: PurposeRegistration, Code: "222222", IssuedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	_, err = app.Store.ReplaceOTP(second)
	require.NoError(t, err)

	err = app.validateOTP("x@y.com", PurposeRegistration, "111111")
	assert.ErrorIs(t, err, ErrOTPMismatch)

	require.NoError(t, app.validateOTP("x@y.com", PurposeRegistration, "222222"))
}

func TestPurposesAreIndependent(t *testing.T) {
	app, _, _ := newTestApp(t)
	ctx := context.Background()

	reg, err := app.issueOTP(ctx, "x@y.com", PurposeRegistration, "")
	require.NoError(t, err)
	reset, err := app.issueOTP(ctx, "x@y.com", PurposePasswordReset, "")
	require.NoError(t, err)

	// issuing a reset code must not invalidate the registration code
	require.NoError(t, app.validateOTP("x@y.com", PurposeRegistration, reg.Code))
	require.NoError(t, app.validateOTP("x@y.com", PurposePasswordReset, reset.Code))
}

func TestExpiryBoundary(t *testing.T) {
	app, _, clock := newTestApp(t)
	ctx := context.Background()

	rec, err := app.issueOTP(ctx, "x@y.com", PurposeRegistration, "")
	require.NoError(t, err)

	t.Run("one second before expiry", func(t *testing.T) {
		clock.t = rec.ExpiresAt.Add(-time.Second)
		require.NoError(t, app.validateOTP("x@y.com", PurposeRegistration, rec.Code))
	})

	rec2, err := app.issueOTP(ctx, "x@y.com", PurposeRegistration, "")
	require.NoError(t, err)

	t.Run("one second after expiry", func(t *testing.T) {
		clock.t = rec2.ExpiresAt.Add(time.Second)
		err := app.validateOTP("x@y.com", PurposeRegistration, rec2.Code)
		assert.ErrorIs(t, err, ErrOTPExpired)
	})
}

func TestResendCooldown(t *testing.T) {
	app, _, clock := newTestApp(t)
	ctx := context.Background()

	first, err := app.issueOTP(ctx, "x@y.com", PurposeRegistration, "")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	_, err = app.resendOTP(ctx, "x@y.com", PurposeRegistration, "")
	assert.ErrorIs(t, err, ErrTooSoon)

	clock.Advance(31 * time.Second)
	second, err := app.resendOTP(ctx, "x@y.com", PurposeRegistration, "")
	require.NoError(t, err)
	assert.Equal(t, 1, second.ResendCount)

	// the resend invalidated the original code
	err = app.validateOTP("x@y.com", PurposeRegistration, first.Code)
	if err == nil {
		t.Fatalf("first code still validated after resend")
	}
}

func TestDeliveryFailureStillPersistsCode(t *testing.T) {
	app, mailer, _ := newTestApp(t)
	mailer.fail = true

	rec, err := app.issueOTP(context.Background(), "x@y.com", PurposeRegistration, "")
	assert.ErrorIs(t, err, ErrDelivery)
	require.NotNil(t, rec)

	// the stored code remains valid, so a later resend or verify can succeed
	stored, err := app.Store.GetActiveOTP("x@y.com", PurposeRegistration)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, rec.Code, stored.Code)
}

func TestConsumeOTPExactlyOnce(t *testing.T) {
	app, _, _ := newTestApp(t)
	rec, err := app.issueOTP(context.Background(), "x@y.com", PurposeRegistration, "")
	require.NoError(t, err)

	won, err := app.Store.ConsumeOTP(rec.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = app.Store.ConsumeOTP(rec.ID)
	require.NoError(t, err)
	assert.False(t, won, "a consumed record must not consume again")
}
