package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 6

// BrandSubmission carries the fields of a brand registration request.
// Logo is an opaque reference produced by the upload boundary.
type BrandSubmission struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	AdminUsername string `json:"adminUsername"`
	Category      string `json:"category"`
	Country       string `json:"country"`
	Website       string `json:"website"`
	Description   string `json:"description"`
	PhoneNumber   string `json:"phoneNumber"`
	Logo          string `json:"logo"`
}

func (s *BrandSubmission) validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", s.Name},
		{"email", s.Email},
		{"password", s.Password},
		{"adminUsername", s.AdminUsername},
		{"category", s.Category},
		{"country", s.Country},
		{"website", s.Website},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if !emailPattern.MatchString(s.Email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(s.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	return nil
}

// submitBrand creates a brand in pending_otp and dispatches a registration
// code. Emails and admin usernames stay unique across every status, rejected
// included; a rejected brand cannot re-register with the same email.
func (a *App) submitBrand(ctx context.Context, in BrandSubmission, clientIP string) (*Brand, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	brand := &Brand{
		Name:          in.Name,
		Email:         strings.ToLower(in.Email),
		Password:      hash,
		AdminUsername: in.AdminUsername,
		Category:      in.Category,
		Country:       in.Country,
		Website:       in.Website,
		Description:   in.Description,
		PhoneNumber:   in.PhoneNumber,
		Logo:          in.Logo,
		Status:        StatusPendingOTP,
		SubmittedAt:   a.now(),
	}
	created, err := a.Store.CreateBrand(brand)
	if err != nil {
		return nil, err
	}
	if _, err := a.issueOTP(ctx, created.Email, PurposeRegistration, clientIP); err != nil {
		// The brand record stands either way; a delivery failure is reported
		// so the client can trigger a resend instead of seeing silent success.
		return created, err
	}
	return created, nil
}

// verifyBrandOTP moves a brand from pending_otp to pending_review. Retrying
// after the transition already happened is a no-op success; the code itself
// still consumes exactly once at the OTP engine.
func (a *App) verifyBrandOTP(ctx context.Context, email, code string) (*Brand, error) {
	brand, err := a.Store.GetBrandByEmail(email)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, ErrOTPNotFound
	}
	if brand.Status != StatusPendingOTP {
		return brand, nil
	}
	if err := a.validateOTP(email, PurposeRegistration, code); err != nil {
		return nil, err
	}
	if _, err := a.Store.AdvanceBrandStatusByEmail(email, StatusPendingOTP, StatusPendingReview); err != nil {
		return nil, err
	}
	return a.Store.GetBrandByEmail(email)
}

// approveBrand is only legal from pending_review; the store CAS makes a
// concurrent double-decision lose with ErrInvalidTransition.
func (a *App) approveBrand(id int64, reviewNote string) (*Brand, error) {
	decidedAt := a.now()
	if err := a.Store.AdvanceBrandStatus(id, StatusPendingReview, StatusApproved, reviewNote, &decidedAt); err != nil {
		return nil, err
	}
	return a.Store.GetBrandByID(id)
}

func (a *App) rejectBrand(id int64, reviewNote string) (*Brand, error) {
	decidedAt := a.now()
	if err := a.Store.AdvanceBrandStatus(id, StatusPendingReview, StatusRejected, reviewNote, &decidedAt); err != nil {
		return nil, err
	}
	return a.Store.GetBrandByID(id)
}

func (a *App) listPendingBrands() ([]*Brand, error) {
	return a.Store.ListBrandsByStatus(StatusPendingReview)
}

// UserSubmission carries the fields of a user registration request.
type UserSubmission struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *UserSubmission) validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", s.Name},
		{"email", s.Email},
		{"password", s.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if !emailPattern.MatchString(s.Email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(s.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	return nil
}

// registerUser creates an unverified user and dispatches a registration code.
func (a *App) registerUser(ctx context.Context, in UserSubmission, clientIP string) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Name:      in.Name,
		Email:     strings.ToLower(in.Email),
		Password:  hash,
		CreatedAt: a.now(),
	}
	created, err := a.Store.CreateUser(user)
	if err != nil {
		return nil, err
	}
	if _, err := a.issueOTP(ctx, created.Email, PurposeRegistration, clientIP); err != nil {
		return created, err
	}
	return created, nil
}

// verifyUserOTP marks the user verified and logs them straight in, which is
// how the user flow differs from the brand flow (no admin review step).
// Retrying once verified is a no-op success without a token; a credential is
// only ever minted against a freshly consumed code.
func (a *App) verifyUserOTP(ctx context.Context, email, code string) (string, *User, error) {
	user, err := a.Store.GetUserByEmail(email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrOTPNotFound
	}
	if user.Verified {
		return "", user, nil
	}
	if err := a.validateOTP(email, PurposeRegistration, code); err != nil {
		return "", nil, err
	}
	if err := a.Store.MarkUserVerified(email); err != nil {
		return "", nil, err
	}
	user.Verified = true
	token, err := a.createToken(user.ID, user.Email, RoleUser)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// resendRegistrationOTP reissues a registration code only when the identity
// exists and still needs one. Like requestPasswordReset it replies identically
// when the account is absent or already past verification, so the endpoint
// neither leaks account existence nor mails addresses with no registration.
func (a *App) resendRegistrationOTP(ctx context.Context, email string, role Role, clientIP string) error {
	switch role {
	case RoleBrand:
		b, err := a.Store.GetBrandByEmail(email)
		if err != nil {
			return err
		}
		if b == nil || b.Status != StatusPendingOTP {
			return nil
		}
	default:
		u, err := a.Store.GetUserByEmail(email)
		if err != nil {
			return err
		}
		if u == nil || u.Verified {
			return nil
		}
	}
	_, err := a.resendOTP(ctx, email, PurposeRegistration, clientIP)
	return err
}

// requestPasswordReset issues a reset code for either role. It replies
// identically whether or not the account exists.
func (a *App) requestPasswordReset(ctx context.Context, email string, role Role, clientIP string) error {
	var exists bool
	switch role {
	case RoleBrand:
		b, err := a.Store.GetBrandByEmail(email)
		if err != nil {
			return err
		}
		exists = b != nil
	default:
		u, err := a.Store.GetUserByEmail(email)
		if err != nil {
			return err
		}
		exists = u != nil
	}
	if !exists {
		// Enumeration-safe: pretend a code was sent.
		return nil
	}
	_, err := a.issueOTP(ctx, email, PurposePasswordReset, clientIP)
	return err
}

// resetPassword validates the reset code and replaces the stored hash.
func (a *App) resetPassword(ctx context.Context, email, code, newPassword string, role Role) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if err := a.validateOTP(email, PurposePasswordReset, code); err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if role == RoleBrand {
		return a.Store.UpdateBrandPassword(email, hash)
	}
	return a.Store.UpdateUserPassword(email, hash)
}

// decisionTime formats a decision timestamp for responses.
func decisionTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
