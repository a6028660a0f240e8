package main

import (
	"encoding/json"
	"net/http"
)

func brandResponse(b *Brand) map[string]interface{} {
	return map[string]interface{}{
		"id":            b.ID,
		"name":          b.Name,
		"email":         b.Email,
		"adminUsername": b.AdminUsername,
		"category":      b.Category,
		"country":       b.Country,
		"website":       b.Website,
		"description":   b.Description,
		"phoneNumber":   b.PhoneNumber,
		"logo":          b.Logo,
		"status":        b.Status,
		"reviewNote":    b.ReviewNote,
		"submittedAt":   b.SubmittedAt,
		"decidedAt":     decisionTime(b.DecidedAt),
	}
}

// HandleBrandRegister submits a brand registration; the record starts in
// pending_otp and a verification code goes out to the contact email.
// POST /api/brand-auth/register
func (a *App) HandleBrandRegister(w http.ResponseWriter, r *http.Request) {
	var in BrandSubmission
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	brand, err := a.submitBrand(r.Context(), in, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Registration received, verification code sent", map[string]interface{}{
		"brand": brandResponse(brand),
	})
}

// HandleBrandVerifyOTP moves the brand to pending_review on a correct code.
// Retries after the transition are a no-op success.
// POST /api/brand-auth/verify-otp
func (a *App) HandleBrandVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	brand, err := a.verifyBrandOTP(r.Context(), in.Email, in.OTP)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Email verified, your registration is awaiting review", map[string]interface{}{
		"brand": brandResponse(brand),
	})
}

// HandleBrandResendOTP reissues the registration code, subject to cooldown.
// POST /api/brand-auth/resend-otp
func (a *App) HandleBrandResendOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeFailure(w, http.StatusBadRequest, "Email is required")
		return
	}
	if err := a.resendRegistrationOTP(r.Context(), in.Email, RoleBrand, clientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Verification code sent", nil)
}

// HandleBrandLogin authenticates an approved brand.
// POST /api/brand-auth/login
func (a *App) HandleBrandLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Email == "" || in.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	token, brand, err := a.loginBrand(in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", map[string]interface{}{
		"brand": brandResponse(brand),
		"token": token,
	})
}

// HandleBrandProfile returns the authenticated brand's record, including its
// current approval status fetched fresh from the store.
// GET /api/brand-auth/profile
func (a *App) HandleBrandProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, ErrUnauthorized)
		return
	}
	brand, err := a.Store.GetBrandByEmail(claims.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if brand == nil {
		writeError(w, ErrNotFound)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile retrieved", map[string]interface{}{
		"brand": brandResponse(brand),
	})
}
