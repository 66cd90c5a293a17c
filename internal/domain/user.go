package domain

import (
	"strings"
	"time"
)

// Address is a postal address saved on a user or attached to an order.
type Address struct {
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state,omitempty" bson:"state,omitempty"`
	PostalCode string `json:"postalCode" bson:"postal_code"`
	Country    string `json:"country" bson:"country"`
}

// Validate requires every field except State.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Street) == "":
		return Invalid("address street required")
	case strings.TrimSpace(a.City) == "":
		return Invalid("address city required")
	case strings.TrimSpace(a.PostalCode) == "":
		return Invalid("address postalCode required")
	case strings.TrimSpace(a.Country) == "":
		return Invalid("address country required")
	}
	return nil
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	Addresses    []Address `json:"addresses"`
	CreatedAt    time.Time `json:"createdAt"`
}
