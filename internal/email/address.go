// Package email defines the canonical email model that every courier reads.
// Values are built by the caller and never mutated by a courier.
package email

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all model validation; validator caches struct
// metadata and is safe for concurrent use.
var validate = validator.New()

// Address is a mailbox: an email address with an optional display name.
type Address struct {
	Email string `validate:"required,email"`
	Name  string
}

// NewAddress returns an Address after checking that addr is well-formed.
func NewAddress(addr, name string) (Address, error) {
	a := Address{Email: addr, Name: name}
	if err := validate.Struct(a); err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return a, nil
}

// MustAddress is like NewAddress but panics on a malformed address.
func MustAddress(addr, name string) Address {
	a, err := NewAddress(addr, name)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the address as `"Name" <email>` when a display name is set,
// otherwise as the bare address.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf(`"%s" <%s>`, a.Name, a.Email)
}

// LocalPart returns the part of the address before the last "@".
func (a Address) LocalPart() string {
	i := strings.LastIndex(a.Email, "@")
	if i < 0 {
		return a.Email
	}
	return a.Email[:i]
}

// Domain returns the part of the address after the last "@".
func (a Address) Domain() string {
	i := strings.LastIndex(a.Email, "@")
	if i < 0 {
		return ""
	}
	return a.Email[i+1:]
}
