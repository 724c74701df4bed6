// Package auth issues and verifies the bearer tokens protecting the admin
// API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"plexward/internal/shared/biztime"
)

// Claims is the admin token payload.
type Claims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies admin tokens with the session secret.
type JWTService struct {
	secret   []byte
	ttlHours int
}

func NewJWTService(secret string, ttlHours int) *JWTService {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &JWTService{
		secret:   []byte(secret),
		ttlHours: ttlHours,
	}
}

// Configured reports whether a signing secret is present. Without one the
// admin API stays locked.
func (s *JWTService) Configured() bool {
	return len(s.secret) > 0
}

// Generate issues a token for the named operator.
func (s *JWTService) Generate(subject string) (string, time.Time, error) {
	now := biztime.NowUTC()
	expiresAt := now.Add(time.Duration(s.ttlHours) * time.Hour)

	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token string.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
