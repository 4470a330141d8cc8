package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), LoginTokenTTL)

	token, err := svc.Issue("9800000001", true)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	phone, admin, err := svc.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, "9800000001", phone)
	assert.True(t, admin)
}

func TestTokenService_NonAdminClaim(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), LoginTokenTTL)

	token, err := svc.Issue("9800000002", false)
	assert.NoError(t, err)

	phone, admin, err := svc.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, "9800000002", phone)
	assert.False(t, admin)
}

func TestTokenService_Expiry(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), time.Nanosecond)

	token, err := svc.Issue("9800000001", false)
	assert.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, _, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_Tampered(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), LoginTokenTTL)

	token, err := svc.Issue("9800000001", false)
	assert.NoError(t, err)

	// Flip a byte in the payload segment.
	tampered := []byte(token)
	tampered[len(tampered)/2] ^= 0x01

	_, _, err = svc.Verify(string(tampered))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_WrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("secret-a"), LoginTokenTTL)
	verifier := NewTokenService([]byte("secret-b"), LoginTokenTTL)

	token, err := issuer.Issue("9800000001", false)
	assert.NoError(t, err)

	_, _, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_SixtyDayExpiry(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), LoginTokenTTL)

	token, err := svc.Issue("9800000001", false)
	assert.NoError(t, err)

	claims := &TokenClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}
