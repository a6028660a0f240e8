package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

var (
	// ErrValidation is returned for bad or missing request input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateIdentity is returned when an email or admin username is already taken.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFormat is returned for malformed OTP codes before any store lookup.
	ErrInvalidFormat = errors.New("code must be exactly 6 digits")
	// ErrOTPNotFound is returned when no active code exists for the email and purpose.
	ErrOTPNotFound = errors.New("no active verification code")
	// ErrOTPExpired is returned when the active code has passed its expiry.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPMismatch is returned when the submitted code does not match.
	ErrOTPMismatch = errors.New("verification code incorrect")
	// ErrTooSoon is returned when a resend is requested inside the cooldown window.
	ErrTooSoon = errors.New("code requested too recently")
	// ErrInvalidTransition is returned when a status change is not legal from the current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidCredentials is deliberately vague to avoid account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotApproved is returned when a brand logs in before admin approval.
	ErrNotApproved = errors.New("brand account not approved")
	// ErrNotVerified is returned when a user logs in before verifying their email.
	ErrNotVerified = errors.New("account not verified")
	// ErrDelivery is returned when the mailer rejects an OTP send.
	ErrDelivery = errors.New("mail delivery failed")
	// ErrUnauthorized is returned for missing, malformed, or expired tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidFileType is returned when an upload is not an accepted image format.
	ErrInvalidFileType = errors.New("only png, jpg, jpeg, webp and svg files are allowed")
	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds the 2MB limit")
)

// ValidationError enumerates the missing required fields of a submission.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// envelope is the response shape the frontend expects on every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// writeError translates a core error into an HTTP status and envelope.
// Internal detail never reaches the client; only the typed kind's message does.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidFormat):
		writeFailure(w, http.StatusBadRequest, ErrInvalidFormat.Error())
	case errors.Is(err, ErrDuplicateIdentity):
		writeFailure(w, http.StatusConflict, "An account with this email or username already exists")
	case errors.Is(err, ErrNotFound):
		writeFailure(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrOTPNotFound):
		writeFailure(w, http.StatusNotFound, ErrOTPNotFound.Error())
	case errors.Is(err, ErrOTPExpired):
		writeFailure(w, http.StatusGone, ErrOTPExpired.Error())
	case errors.Is(err, ErrOTPMismatch):
		writeFailure(w, http.StatusBadRequest, ErrOTPMismatch.Error())
	case errors.Is(err, ErrTooSoon):
		writeFailure(w, http.StatusTooManyRequests, ErrTooSoon.Error())
	case errors.Is(err, ErrInvalidTransition):
		writeFailure(w, http.StatusConflict, ErrInvalidTransition.Error())
	case errors.Is(err, ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrNotApproved):
		writeFailure(w, http.StatusForbidden, "Your brand account is awaiting approval")
	case errors.Is(err, ErrNotVerified):
		writeFailure(w, http.StatusForbidden, "Please verify your account first")
	case errors.Is(err, ErrDelivery):
		writeFailure(w, http.StatusBadGateway, "Could not send the verification email, please retry")
	case errors.Is(err, ErrUnauthorized):
		writeFailure(w, http.StatusUnauthorized, ErrUnauthorized.Error())
	case errors.Is(err, ErrInvalidFileType):
		writeFailure(w, http.StatusBadRequest, ErrInvalidFileType.Error())
	case errors.Is(err, ErrFileTooLarge):
		writeFailure(w, http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
	default:
		log.Printf("internal error: %v", err)
		writeFailure(w, http.StatusInternalServerError, "Something went wrong, please try again later")
	}
}
