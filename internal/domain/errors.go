package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap exactly one of these so callers at the
// request boundary can map them with errors.Is.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict indicates a lost compare-and-set race on a versioned document.
	ErrConflict = errors.New("concurrent modification")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("invalid input")
	// ErrBusinessRule indicates the request is well-formed but violates a rule.
	ErrBusinessRule = errors.New("business rule violated")
	// ErrAuthInvalid indicates a presented credential failed verification.
	ErrAuthInvalid = errors.New("invalid or expired token")
	// ErrForbidden indicates the caller is authenticated but not allowed.
	ErrForbidden = errors.New("forbidden")
)

var (
	ErrCartNotFound    = kindErr(ErrNotFound, "cart not found")
	ErrItemNotFound    = kindErr(ErrNotFound, "item not found in cart")
	ErrOrderNotFound   = kindErr(ErrNotFound, "order not found")
	ErrProductNotFound = kindErr(ErrNotFound, "product not found")
	ErrUserNotFound    = kindErr(ErrNotFound, "user not found")

	ErrEmptyCart     = kindErr(ErrValidation, "cart is empty")
	ErrInvalidStatus = kindErr(ErrValidation, "invalid status")

	ErrInvalidCredentials = kindErr(ErrAuthInvalid, "invalid email or password")

	ErrInsufficientStock = kindErr(ErrBusinessRule, "insufficient stock")
	ErrPriceUnavailable  = kindErr(ErrBusinessRule, "price unavailable for one or more products")
	ErrInvalidTransition = kindErr(ErrBusinessRule, "status transition not allowed")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func kindErr(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Invalid builds a validation error with a caller-facing message.
func Invalid(format string, args ...interface{}) error {
	return kindErr(ErrValidation, fmt.Sprintf(format, args...))
}
