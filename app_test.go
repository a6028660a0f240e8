package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/thriftauth/internal/config"
)

type sentMail struct {
	to      string
	subject string
	body    string
}

// recordingMailer captures sends and can be told to fail.
type recordingMailer struct {
	sent []sentMail
	fail bool
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// testClock lets tests walk time across expiry and cooldown boundaries.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestApp(t *testing.T) (*App, *recordingMailer, *testClock) {
	t.Helper()
	jwtSecret = []byte("test-secret")
	// Token expiry is checked against the wall clock by the jwt library, so
	// the test clock starts at real time rather than a fixed date.
	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	mailer := &recordingMailer{}
	app := &App{
		Store:  NewMemStore(),
		Mailer: mailer,
		cfg: &config.Config{
			AdminKey:          "admin-secret",
			UserTokenTTL:      24 * time.Hour,
			BrandTokenTTL:     24 * time.Hour,
			AdminTokenTTL:     time.Hour,
			OTPTTL:            5 * time.Minute,
			OTPResendCooldown: 60 * time.Second,
			OTPIssueLimit:     5,
			UploadDir:         t.TempDir(),
		},
		now: clock.Now,
	}
	return app, mailer, clock
}

func acmeSubmission() BrandSubmission {
	return BrandSubmission{
		Name:          "Acme",
		Email:         "a@b.com",
		Password:      "secret1",
		AdminUsername: "acmeadmin",
		Category:      "fashion",
		Country:       "UK",
		Website:       "https://acme.test",
	}
}

// activeCode fetches the stored code for an email, since mail bodies are the
// only other place it appears.
func activeCode(t *testing.T, app *App, email string, purpose OTPPurpose) string {
	t.Helper()
	rec, err := app.Store.GetActiveOTP(email, purpose)
	if err != nil {
		t.Fatalf("get active otp: %v", err)
	}
	if rec == nil {
		t.Fatalf("no active otp for %s/%s", email, purpose)
	}
	return rec.Code
}
