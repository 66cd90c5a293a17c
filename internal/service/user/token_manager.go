package user

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service/identity"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	IsAdmin bool `json:"adm"`
	jwt.RegisteredClaims
}

// tokenManager issues and verifies HS256 access tokens. Tokens are stateless;
// nothing is stored server-side.
var errNoSigningKey = errors.New("token signing key not configured")

type tokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokenManager(secret string, ttl time.Duration) *tokenManager {
	return &tokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *tokenManager) Issue(u domain.User) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, errNoSigningKey
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *tokenManager) Verify(raw string) (identity.Claims, error) {
	if len(m.secret) == 0 {
		return identity.Claims{}, errors.Join(domain.ErrAuthInvalid, errNoSigningKey)
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return identity.Claims{}, errors.Join(domain.ErrAuthInvalid, err)
	}
	if claims.Subject == "" {
		return identity.Claims{}, domain.ErrAuthInvalid
	}
	return identity.Claims{UserID: claims.Subject, IsAdmin: claims.IsAdmin}, nil
}
