// Package stdout implements a Courier that prints emails to standard output.
package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/courier/internal/courier"
	"github.com/shineum/courier/internal/email"
)

const name = "stdout"

// Courier prints email messages in a human-readable format.
type Courier struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Courier that writes to os.Stdout.
func New() *Courier {
	return &Courier{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Courier that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Courier {
	return &Courier{writer: w}
}

// Deliver prints the email. Nothing is written when the content is not one
// of the known variants.
func (c *Courier) Deliver(_ context.Context, msg *email.Email) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", formatList(msg.To))

	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", formatList(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", formatList(msg.Bcc))
	}
	if len(msg.ReplyTo) > 0 {
		fmt.Fprintf(&b, "Reply-To: %s\n", formatList(msg.ReplyTo))
	}
	for _, key := range msg.HeaderNames() {
		fmt.Fprintf(&b, "%s: %s\n", key, msg.Headers[key])
	}

	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)

	switch content := msg.Content.(type) {
	case email.SimpleContent:
		b.WriteString("Body:\n")
		switch {
		case content.Text != nil:
			b.WriteString(*content.Text + "\n")
		case content.HTML != nil:
			b.WriteString(*content.HTML + "\n")
		}
	case email.TemplatedContent:
		fmt.Fprintf(&b, "Template: %s\n", content.TemplateID)
		if len(content.Data) > 0 {
			data, err := json.Marshal(content.Data)
			if err != nil {
				return fmt.Errorf("%s: %w: template data: %w", name, courier.ErrValidation, err)
			}
			fmt.Fprintf(&b, "Template data: %s\n", data)
		}
	case email.EmptyContent:
		b.WriteString("Body: (empty)\n")
	default:
		return courier.UnsupportedContent(name, msg.Content)
	}

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			data, err := att.Content()
			if err != nil {
				return fmt.Errorf("%s: %w: %w", name, courier.ErrValidation, err)
			}
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.DisplayName(), formatSize(len(data))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	b.WriteString("========================================\n")

	if _, err := io.WriteString(c.writer, b.String()); err != nil {
		return &courier.TransmissionError{
			Provider: name,
			Message:  err.Error(),
			Err:      err,
		}
	}

	return nil
}

// Name returns the courier name.
func (c *Courier) Name() string {
	return name
}

func formatList(addrs []email.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
