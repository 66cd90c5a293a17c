package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/memory"

	"github.com/golang-jwt/jwt/v5"
)

func TestRegisterAndLogin_SucceedsWithTrimmedPassword(t *testing.T) {
	svc := New(memory.New().Users(), "secret", time.Hour)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Name:     "Test User",
		Email:    " User@Example.com ",
		Password: " Abcdefg1 ",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if u.Email != "user@example.com" || u.PasswordHash == "" || u.IsAdmin {
		t.Fatalf("unexpected user %+v", u)
	}

	session, err := svc.Login(ctx, "user@example.com", "Abcdefg1")
	if err != nil {
		t.Fatalf("login failed with trimmed password: %v", err)
	}
	claims, err := svc.Verify(session.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.UserID != u.ID || claims.IsAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}

	me, err := svc.Me(ctx, claims.UserID)
	if err != nil || me.ID != u.ID {
		t.Fatalf("Me: %+v %v", me, err)
	}
}

func TestRegister_RejectsDuplicatesAndBadInput(t *testing.T) {
	svc := New(memory.New().Users(), "secret", time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "Abcdefg1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Name: "B", Email: "A@example.com", Password: "Abcdefg1"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"no name", RegisterInput{Email: "c@example.com", Password: "Abcdefg1"}},
		{"bad email", RegisterInput{Name: "C", Email: "not-an-email", Password: "Abcdefg1"}},
		{"weak password", RegisterInput{Name: "C", Email: "c@example.com", Password: "abc"}},
		{"bad address", RegisterInput{Name: "C", Email: "c@example.com", Password: "Abcdefg1", Addresses: []domain.Address{{City: "X"}}}},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestValidatePassword_FailsOnWeakValues(t *testing.T) {
	cases := []struct {
		name string
		pass string
	}{
		{"too short", "Abc1"},
		{"no upper", "abcdefg1"},
		{"no lower", "ABCDEFG1"},
		{"no digit", "Abcdefgh"},
	}
	for _, tc := range cases {
		if err := validatePassword(tc.pass, 8); err == nil {
			t.Fatalf("expected error for case %s", tc.name)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := New(memory.New().Users(), "secret", time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "T", Email: "user@example.com", Password: "Abcdefg1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "user@example.com", "wrongpass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "missing@example.com", "Abcdefg1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for missing user, got %v", err)
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	svc := New(memory.New().Users(), "secret", time.Hour)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "Abcdefg1", IsAdmin: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := svc.Login(ctx, "admin@example.com", "Abcdefg1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Verify(session.Token)
	if err != nil || !claims.IsAdmin {
		t.Fatalf("expected admin claims, got %+v %v", claims, err)
	}

	other := New(memory.New().Users(), "other-secret", time.Hour)
	if _, err := other.Verify(session.Token); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("expected signature mismatch to be rejected, got %v", err)
	}

	svc.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Verify(session.Token); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	if _, err := svc.Verify("not.a.token"); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("expected malformed token to be rejected, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := svc.Verify(unsigned); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("expected alg=none to be rejected, got %v", err)
	}
}

func TestEmptySecret_IssuesAndAcceptsNothing(t *testing.T) {
	svc := New(memory.New().Users(), "", time.Hour)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "User", Email: "user@example.com", Password: "Abcdefg1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "user@example.com", "Abcdefg1"); err == nil {
		t.Fatalf("expected login to fail without a signing key")
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		IsAdmin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := forged.SignedString([]byte("dev-secret-change-me"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if claims, err := svc.Verify(raw); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("expected forged token to be rejected, got %+v %v", claims, err)
	}
}
