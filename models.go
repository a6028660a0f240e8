package main

import "time"

// Role distinguishes the three identity kinds sharing the login path.
type Role string

const (
	RoleUser  Role = "user"
	RoleBrand Role = "brand"
	RoleAdmin Role = "admin"
)

// ApprovalStatus tracks a brand through registration and admin review.
type ApprovalStatus string

const (
	StatusPendingOTP    ApprovalStatus = "pending_otp"
	StatusPendingReview ApprovalStatus = "pending_review"
	StatusApproved      ApprovalStatus = "approved"
	StatusRejected      ApprovalStatus = "rejected"
)

// OTPPurpose scopes a code to the flow that issued it.
type OTPPurpose string

const (
	PurposeRegistration  OTPPurpose = "registration"
	PurposePasswordReset OTPPurpose = "password_reset"
)

// User represents a student account.
type User struct {
	ID        int64
	Name      string
	Email     string
	Password  string // bcrypt hash
	Verified  bool
	CreatedAt time.Time
}

// Brand represents a brand account and its review lifecycle.
type Brand struct {
	ID            int64
	Name          string
	Email         string
	Password      string // bcrypt hash
	AdminUsername string
	Category      string
	Country       string
	Website       string
	Description   string
	PhoneNumber   string
	Logo          string // opaque path or URL set by the upload boundary
	Status        ApprovalStatus
	ReviewNote    string
	SubmittedAt   time.Time
	DecidedAt     *time.Time
}

// OTPRecord is a one-time code bound to an email and purpose.
// At most one active (unconsumed, unexpired) record exists per pair;
// issuing a replacement consumes the prior one in the same transaction.
type OTPRecord struct {
	ID          int64
	Email       string
	Purpose     OTPPurpose
	Code        string // 6 ASCII digits
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Consumed    bool
	ResendCount int
}
