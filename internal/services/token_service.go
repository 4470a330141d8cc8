package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failures, distinguished so handlers can tell the
// caller whether to log in again or to stop sending garbage.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenClaims is the claim set carried by every issued token. Admin is a
// snapshot taken at login; privileged handlers re-check the live user record
// rather than trusting it.
type TokenClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies HS256 bearer tokens. The signing secret
// and TTL are injected once at startup; rotating the secret invalidates all
// outstanding tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// LoginTokenTTL is the fixed lifetime of login tokens.
const LoginTokenTTL = 60 * 24 * time.Hour

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = LoginTokenTTL
	}
	return &TokenService{secret: secret, ttl: ttl}
}

// Issue signs a token for the given phone with the admin flag snapshotted
// at issuance time.
func (s *TokenService) Issue(phone string, admin bool) (string, error) {
	claims := TokenClaims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   phone,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the subject phone and the
// admin claim. Expired tokens map to ErrTokenExpired; any other parse or
// signature failure maps to ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (phone string, admin bool, err error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", false, ErrTokenExpired
		}
		return "", false, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return "", false, ErrTokenInvalid
	}
	return claims.Subject, claims.Admin, nil
}
