package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// Claims is the verified content of a bearer credential.
type Claims struct {
	UserID  string
	IsAdmin bool
}

// TokenVerifier checks a bearer credential. Any error means the credential
// must be rejected.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Resolution is the outcome of resolving a request's identity.
type Resolution struct {
	Owner domain.OwnerKey
	// Claims is nil for guests.
	Claims *Claims
	// IssueCookie asks the caller to persist Owner.ID() as the guest cookie
	// for CookieTTL.
	IssueCookie bool
	CookieTTL   time.Duration
}

func (r Resolution) IsAdmin() bool {
	return r.Claims != nil && r.Claims.IsAdmin
}

type Service struct {
	verifier  TokenVerifier
	cookieTTL time.Duration
	newID     func() string
}

func New(verifier TokenVerifier, cookieTTL time.Duration) *Service {
	if cookieTTL <= 0 {
		cookieTTL = time.Hour
	}
	return &Service{
		verifier:  verifier,
		cookieTTL: cookieTTL,
		newID:     uuid.NewString,
	}
}

// Resolve maps a bearer token and guest cookie to a cart owner. A token that
// is present but fails verification is an error; it never falls back to the
// guest identity.
func (s *Service) Resolve(ctx context.Context, bearer, guestCookie string) (Resolution, error) {
	if token := strings.TrimSpace(bearer); token != "" {
		claims, err := s.verifier.Verify(token)
		if err != nil {
			if errors.Is(err, domain.ErrAuthInvalid) {
				return Resolution{}, err
			}
			return Resolution{}, domain.ErrAuthInvalid
		}
		if claims.UserID == "" {
			return Resolution{}, domain.ErrAuthInvalid
		}
		return Resolution{Owner: domain.UserOwner(claims.UserID), Claims: &claims}, nil
	}

	if id, ok := parseGuestID(guestCookie); ok {
		return Resolution{Owner: domain.GuestOwner(id)}, nil
	}

	return Resolution{
		Owner:       domain.GuestOwner(s.newID()),
		IssueCookie: true,
		CookieTTL:   s.cookieTTL,
	}, nil
}

// CookieTTL is the lifetime given to newly issued guest cookies.
func (s *Service) CookieTTL() time.Duration {
	return s.cookieTTL
}

// parseGuestID accepts only canonical UUIDs so arbitrary cookie values never
// become owner keys.
func parseGuestID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
