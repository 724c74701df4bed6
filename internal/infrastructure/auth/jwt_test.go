package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndVerify(t *testing.T) {
	svc := NewJWTService("test-secret", 1)

	token, expiresAt, err := svc.Generate("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

func TestJWTService_Verify(t *testing.T) {
	svc := NewJWTService("test-secret", 1)

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other := NewJWTService("other-secret", 1)
		token, _, err := other.Generate("admin")
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.Error(t, err)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		claims := &Claims{
			Subject: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(past),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.Error(t, err)
	})

	t.Run("rejects a token with a non-HMAC algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Subject: "admin"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Verify(unsigned)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.Verify("not.a.token")
		assert.Error(t, err)
	})
}

func TestJWTService_Configured(t *testing.T) {
	assert.False(t, NewJWTService("", 1).Configured())
	assert.True(t, NewJWTService("secret", 1).Configured())
}
