// Package courier defines the interface that email delivery adapters
// implement and the errors they report.
package courier

import (
	"context"
	"strings"

	"github.com/shineum/courier/internal/email"
)

// Courier delivers an email through one provider. Each adapter maps the
// canonical email model onto its provider's wire format and reports failures
// with the errors defined in this package.
type Courier interface {
	// Deliver sends msg with a single provider call. It returns
	// ErrUnsupportedContent, ErrValidation or a *TransmissionError on failure.
	Deliver(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this courier.
	Name() string
}

// JoinAddresses joins the bare addresses with commas, without display names.
func JoinAddresses(addrs []email.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Email)
	}
	return strings.Join(parts, ",")
}
