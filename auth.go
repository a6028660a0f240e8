package main

import (
	"crypto/subtle"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var jwtSecret []byte

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func comparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// Claims is the self-contained token payload: subject id, email, role, expiry.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

func (a *App) tokenTTL(role Role) time.Duration {
	switch role {
	case RoleAdmin:
		return a.cfg.AdminTokenTTL
	case RoleBrand:
		return a.cfg.BrandTokenTTL
	default:
		return a.cfg.UserTokenTTL
	}
}

func (a *App) createToken(id int64, email string, role Role) (string, error) {
	now := a.now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL(role))),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// parseToken verifies signature and expiry; any failure is ErrUnauthorized.
func parseToken(raw string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	return &claims, nil
}

// loginUser authenticates a student account. The not-found and bad-password
// paths return the same error to avoid account enumeration.
func (a *App) loginUser(email, password string) (string, *User, error) {
	u, err := a.Store.GetUserByEmail(email)
	if err != nil {
		return "", nil, err
	}
	if u == nil || !comparePassword(u.Password, password) {
		return "", nil, ErrInvalidCredentials
	}
	if !u.Verified {
		return "", nil, ErrNotVerified
	}
	token, err := a.createToken(u.ID, u.Email, RoleUser)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// loginBrand authenticates a brand account; only approved brands may obtain
// a token, even with correct credentials.
func (a *App) loginBrand(email, password string) (string, *Brand, error) {
	b, err := a.Store.GetBrandByEmail(email)
	if err != nil {
		return "", nil, err
	}
	if b == nil || !comparePassword(b.Password, password) {
		return "", nil, ErrInvalidCredentials
	}
	if b.Status != StatusApproved {
		return "", nil, ErrNotApproved
	}
	token, err := a.createToken(b.ID, b.Email, RoleBrand)
	if err != nil {
		return "", nil, err
	}
	return token, b, nil
}

// adminLogin compares the submitted key against the configured secret.
// No persisted admin identity exists.
func (a *App) adminLogin(secretKey string) (string, error) {
	if a.cfg.AdminKey == "" ||
		subtle.ConstantTimeCompare([]byte(secretKey), []byte(a.cfg.AdminKey)) != 1 {
		return "", ErrInvalidCredentials
	}
	return a.createToken(0, "", RoleAdmin)
}
