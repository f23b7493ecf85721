package email

import (
	"fmt"
	"sort"
)

// Email is a complete message ready to be handed to a courier.
type Email struct {
	Subject     string
	From        Address
	To          []Address         `validate:"min=1,dive"`
	Cc          []Address         `validate:"dive"`
	Bcc         []Address         `validate:"dive"`
	ReplyTo     []Address         `validate:"dive"`
	Content     Content           `validate:"-"`
	Attachments []Attachment      `validate:"-"`
	Headers     map[string]string `validate:"-"`
}

// Validate checks what callers must supply before delivery: a
// well-formed sender and at least one well-formed "to" recipient. Couriers
// do not call it.
func (e *Email) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	return nil
}

// FirstReplyTo returns the first reply-to address, if any.
func (e *Email) FirstReplyTo() (Address, bool) {
	if len(e.ReplyTo) == 0 {
		return Address{}, false
	}
	return e.ReplyTo[0], true
}

// HeaderNames returns the custom header names in sorted order.
func (e *Email) HeaderNames() []string {
	names := make([]string, 0, len(e.Headers))
	for name := range e.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
