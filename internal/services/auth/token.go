package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

const adminRole = "admin"

type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs short-lived HS256 tokens for the admin HTTP API. A token
// stands in for the API key until it expires.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *TokenIssuer) Issue(subject string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("token subject is empty")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := tokenClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}

	return signed, expiresAt, nil
}

func (m *TokenIssuer) Parse(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" || len(m.secret) == 0 {
		return Claims{}, ErrUnauthorized
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || token == nil || !token.Valid {
		return Claims{}, ErrUnauthorized
	}
	if claims.Role != adminRole || strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrUnauthorized
	}

	return Claims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
