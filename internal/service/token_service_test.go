package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, secret, issuer string, ownerID uuid.UUID, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": ownerID.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": issuer,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTTokenService_Validate_Success(t *testing.T) {
	svc := NewJWTTokenService("test-secret", "quantumpay-auth")
	ownerID := uuid.New()

	claims, err := svc.Validate(mintToken(t, "test-secret", "quantumpay-auth", ownerID, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ownerID, claims.OwnerID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestJWTTokenService_Validate_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("right-secret", "quantumpay-auth")

	_, err := svc.Validate(mintToken(t, "wrong-secret", "quantumpay-auth", uuid.New(), time.Hour))
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_WrongIssuer(t *testing.T) {
	svc := NewJWTTokenService("test-secret", "quantumpay-auth")

	_, err := svc.Validate(mintToken(t, "test-secret", "someone-else", uuid.New(), time.Hour))
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret", "quantumpay-auth")

	_, err := svc.Validate(mintToken(t, "test-secret", "quantumpay-auth", uuid.New(), -time.Minute))
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret", "quantumpay-auth")

	_, err := svc.Validate("not.a.token")
	assert.Error(t, err)
}
