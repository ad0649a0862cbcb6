// Package auth проверяет учётные данные администратора и выпускает JWT.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDisabled       = errors.New("admin auth is not configured")
	ErrBadCredentials = errors.New("invalid username or password")
	ErrInvalidToken   = errors.New("invalid token")
)

const issuer = "consultation-booking"

// Admin checks the single provider account and signs bearer tokens for it.
type Admin struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAdmin(username, passwordHash, secret string, ttl time.Duration) *Admin {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Admin{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Enabled reports whether credentials and a signing secret are configured.
func (a *Admin) Enabled() bool {
	return a != nil && a.username != "" && len(a.passwordHash) > 0 && len(a.secret) > 0
}

// Verify compares username and password against the configured bcrypt hash.
func (a *Admin) Verify(username, password string) error {
	if !a.Enabled() {
		return ErrDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// bcrypt выполняется при любом логине.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrBadCredentials
	}
	return nil
}

// Login verifies credentials and returns a signed token with its expiry.
func (a *Admin) Login(username, password string) (string, time.Time, error) {
	if err := a.Verify(username, password); err != nil {
		return "", time.Time{}, err
	}
	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   a.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return token, expires, nil
}

// Parse validates an HMAC-signed token and returns its claims.
func (a *Admin) Parse(tokenString string) (*jwt.RegisteredClaims, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword is used by operators to produce ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
