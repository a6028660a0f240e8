package main

import (
	"encoding/json"
	"net/http"
)

func userResponse(u *User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"verified":  u.Verified,
		"createdAt": u.CreatedAt,
	}
}

// HandleRegister creates an unverified user and dispatches a registration OTP.
// POST /api/auth/register
func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in UserSubmission
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := a.registerUser(r.Context(), in, clientIP(r))
	if err != nil {
		// On ErrDelivery the account exists and the code is stored; the
		// client retries delivery with a resend, not by re-registering.
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Registration received, verification code sent", map[string]interface{}{
		"user": userResponse(user),
	})
}

// HandleVerifyOTP validates a user's registration code and returns a token.
// POST /api/auth/verify-otp
func (a *App) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	token, user, err := a.verifyUserOTP(r.Context(), in.Email, in.OTP)
	if err != nil {
		writeError(w, err)
		return
	}
	// A repeat verification succeeds but carries no token.
	data := map[string]interface{}{"user": userResponse(user)}
	if token != "" {
		data["token"] = token
	}
	writeSuccess(w, http.StatusOK, "Account verified", data)
}

// HandleResendOTP reissues a registration code, subject to the cooldown.
// POST /api/auth/resend-otp
func (a *App) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeFailure(w, http.StatusBadRequest, "Email is required")
		return
	}
	if err := a.resendRegistrationOTP(r.Context(), in.Email, RoleUser, clientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Verification code sent", nil)
}

// HandleLogin authenticates a verified user.
// POST /api/auth/login
func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
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
	token, user, err := a.loginUser(in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", map[string]interface{}{
		"user":  userResponse(user),
		"token": token,
	})
}

// HandleForgotPassword issues a password-reset code. The response does not
// reveal whether the account exists.
// POST /api/auth/forgot-password
func (a *App) HandleForgotPassword(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !emailPattern.MatchString(in.Email) {
			writeFailure(w, http.StatusBadRequest, "A valid email is required")
			return
		}
		if err := a.requestPasswordReset(r.Context(), in.Email, role, clientIP(r)); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "If the account exists, a reset code was sent", nil)
	}
}

// HandleResetPassword validates the reset code and replaces the password.
// POST /api/auth/reset-password
func (a *App) HandleResetPassword(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email       string `json:"email"`
			OTP         string `json:"otp"`
			NewPassword string `json:"newPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := a.resetPassword(r.Context(), in.Email, in.OTP, in.NewPassword, role); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Password updated", nil)
	}
}

// HandleProfile returns the authenticated user's record.
// GET /api/auth/profile
func (a *App) HandleProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, ErrUnauthorized)
		return
	}
	user, err := a.Store.GetUserByEmail(claims.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, ErrNotFound)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile retrieved", map[string]interface{}{
		"user": userResponse(user),
	})
}

// HandleTokenValidate reports whether a bearer token is still good.
// GET /api/auth/validate
func (a *App) HandleTokenValidate(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		auth := r.Header.Get("Authorization")
		if len(auth) > 7 && auth[:7] == "Bearer " {
			tokenStr = auth[7:]
		}
	}
	if tokenStr == "" {
		writeFailure(w, http.StatusBadRequest, "Token is required")
		return
	}
	claims, err := parseToken(tokenStr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Token is valid", map[string]interface{}{
		"valid": true,
		"sub":   claims.Subject,
		"role":  claims.Role,
		"exp":   claims.ExpiresAt,
	})
}
