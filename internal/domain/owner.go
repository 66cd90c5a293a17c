package domain

import (
	"fmt"
	"strings"
)

// OwnerKind tags which identity owns a cart or order.
type OwnerKind int

const (
	ownerInvalid OwnerKind = iota
	OwnerUser
	OwnerGuest
)

// OwnerKey identifies the owner of a cart or order: either an authenticated
// user or a guest session. The zero value is not a valid owner.
type OwnerKey struct {
	kind OwnerKind
	id   string
}

// UserOwner returns the owner key of an authenticated user.
func UserOwner(id string) OwnerKey {
	return OwnerKey{kind: OwnerUser, id: id}
}

// GuestOwner returns the owner key of a guest session.
func GuestOwner(id string) OwnerKey {
	return OwnerKey{kind: OwnerGuest, id: id}
}

// ParseOwnerKey parses the "user:<id>" / "guest:<id>" form produced by String.
func ParseOwnerKey(s string) (OwnerKey, error) {
	prefix, id, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(id) == "" {
		return OwnerKey{}, fmt.Errorf("malformed owner key %q", s)
	}
	switch prefix {
	case "user":
		return UserOwner(id), nil
	case "guest":
		return GuestOwner(id), nil
	default:
		return OwnerKey{}, fmt.Errorf("unknown owner kind %q", prefix)
	}
}

func (k OwnerKey) Kind() OwnerKind { return k.kind }

func (k OwnerKey) ID() string { return k.id }

func (k OwnerKey) IsUser() bool { return k.kind == OwnerUser }

func (k OwnerKey) IsGuest() bool { return k.kind == OwnerGuest }

func (k OwnerKey) Valid() bool {
	return (k.kind == OwnerUser || k.kind == OwnerGuest) && strings.TrimSpace(k.id) != ""
}

func (k OwnerKey) String() string {
	switch k.kind {
	case OwnerUser:
		return "user:" + k.id
	case OwnerGuest:
		return "guest:" + k.id
	default:
		return ""
	}
}

func (k OwnerKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OwnerKey) UnmarshalText(b []byte) error {
	parsed, err := ParseOwnerKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
