// Package sparkpost implements a Courier that delivers email through the
// SparkPost transmissions API, including server-side stored templates.
package sparkpost

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shineum/courier/internal/courier"
	"github.com/shineum/courier/internal/email"
)

const name = "sparkpost"

// replyToPlaceholder is the template reply_to value that asks the caller to
// supply the reply-to address.
const replyToPlaceholder = "{{replyTo}}"

// Config holds the configuration for creating a Courier.
type Config struct {
	APIKey  string
	BaseURL string
}

// Courier maps emails onto SparkPost's nested transmission payload.
type Courier struct {
	client Client
}

// New creates a Courier backed by the SparkPost REST API.
func New(cfg Config) *Courier {
	return NewWithClient(NewHTTPClient(cfg.APIKey, cfg.BaseURL, nil))
}

// NewWithClient creates a Courier with a custom client, used for testing.
func NewWithClient(client Client) *Courier {
	return &Courier{client: client}
}

// Name returns the courier name.
func (c *Courier) Name() string {
	return name
}

// Deliver sends msg as a single transmission. Templated content first reads
// the stored template so sender and reply-to placeholders can be resolved.
func (c *Courier) Deliver(ctx context.Context, msg *email.Email) error {
	var (
		tx  *Transmission
		err error
	)

	switch content := msg.Content.(type) {
	case email.SimpleContent:
		tx, err = buildInline(msg, content.HTML, content.Text)
	case email.EmptyContent:
		html, text := "", ""
		tx, err = buildInline(msg, &html, &text)
	case email.TemplatedContent:
		tx, err = c.buildTemplated(ctx, msg, content)
	default:
		return courier.UnsupportedContent(name, msg.Content)
	}
	if err != nil {
		return err
	}

	slog.Debug("delivering email",
		"courier", name,
		"content", msg.Content.Kind(),
		"recipients", len(tx.Recipients)+len(tx.CC)+len(tx.BCC),
		"attachments", len(msg.Attachments),
	)

	result, err := c.client.CreateTransmission(ctx, tx)
	if err != nil {
		return transmissionError(err)
	}

	slog.Debug("email accepted",
		"courier", name,
		"transmission_id", result.ID,
		"accepted", result.TotalAcceptedRecipients,
	)
	return nil
}

// buildInline builds a transmission carrying the email's own content.
func buildInline(msg *email.Email, html, text *string) (*Transmission, error) {
	attachments, err := buildAttachments(msg.Attachments)
	if err != nil {
		return nil, err
	}

	var replyTo *string
	if addr, ok := msg.FirstReplyTo(); ok {
		formatted := addr.String()
		replyTo = &formatted
	}

	tx := &Transmission{
		Content: &InlineContent{
			From:        sender(msg.From),
			Subject:     msg.Subject,
			HTML:        html,
			Text:        text,
			Attachments: attachments,
			ReplyTo:     replyTo,
		},
	}
	addRecipients(tx, msg)
	return tx, nil
}

// buildTemplated reads the stored template and builds a transmission that
// either references it or, when attachments are present, inlines its content.
// Stored-template transmissions cannot carry attachments.
func (c *Courier) buildTemplated(ctx context.Context, msg *email.Email, content email.TemplatedContent) (*Transmission, error) {
	tmpl, err := c.client.GetTemplate(ctx, content.TemplateID)
	if err != nil {
		return nil, transmissionError(err)
	}

	data := make(map[string]any, len(content.Data)+5)
	for k, v := range content.Data {
		data[k] = v
	}

	var fromName any
	if msg.From.Name != "" {
		fromName = msg.From.Name
	}
	data["fromName"] = fromName
	data["fromEmail"] = msg.From.LocalPart()
	data["fromDomain"] = msg.From.Domain()
	data["subject"] = msg.Subject

	replyTo, hasReplyTo := msg.FirstReplyTo()
	dynamicReplyTo := tmpl.Content.ReplyTo == replyToPlaceholder
	if dynamicReplyTo && !hasReplyTo {
		return nil, fmt.Errorf("%s: %w: template %q requires a reply-to address", name, courier.ErrValidation, content.TemplateID)
	}
	if hasReplyTo {
		data["replyTo"] = replyTo.Email
	}

	tx := &Transmission{SubstitutionData: data}
	addRecipients(tx, msg)

	if len(msg.Attachments) == 0 {
		tx.Content = StoredContent{TemplateID: content.TemplateID}
		return tx, nil
	}

	attachments, err := buildAttachments(msg.Attachments)
	if err != nil {
		return nil, err
	}

	from := tmpl.Content.From
	if isPlaceholder(from.Email) {
		from = sender(msg.From)
	}

	var templateReplyTo *string
	switch {
	case dynamicReplyTo:
		templateReplyTo = &replyTo.Email
	case tmpl.Content.ReplyTo != "":
		templateReplyTo = &tmpl.Content.ReplyTo
	}

	tx.Content = &InlineContent{
		From:        from,
		Subject:     tmpl.Content.Subject,
		HTML:        tmpl.Content.HTML,
		Text:        tmpl.Content.Text,
		Attachments: attachments,
		ReplyTo:     templateReplyTo,
		Headers:     tmpl.Content.Headers,
	}
	return tx, nil
}

// isPlaceholder reports whether a template field holds a substitution
// placeholder rather than a literal value.
func isPlaceholder(value string) bool {
	return strings.Contains(value, "{{")
}

func sender(a email.Address) Sender {
	s := Sender{Email: a.Email}
	if a.Name != "" {
		s.Name = &a.Name
	}
	return s
}

func recipients(addrs []email.Address) []Recipient {
	out := make([]Recipient, 0, len(addrs))
	for _, a := range addrs {
		r := RecipientAddress{Email: a.Email}
		if a.Name != "" {
			r.Name = &a.Name
		}
		out = append(out, Recipient{Address: r})
	}
	return out
}

// addRecipients sets the recipient lists. cc and bcc stay nil when empty so
// they are left out of the payload.
func addRecipients(tx *Transmission, msg *email.Email) {
	tx.Recipients = recipients(msg.To)
	if len(msg.Cc) > 0 {
		tx.CC = recipients(msg.Cc)
	}
	if len(msg.Bcc) > 0 {
		tx.BCC = recipients(msg.Bcc)
	}
}

// buildAttachments reads and encodes every attachment. The result is never
// nil so the payload always carries an attachments array.
func buildAttachments(atts []email.Attachment) ([]Attachment, error) {
	out := make([]Attachment, 0, len(atts))
	for _, att := range atts {
		data, err := att.Content()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", name, courier.ErrValidation, err)
		}
		out = append(out, Attachment{
			Name: att.DisplayName(),
			Type: att.MIMEType(data),
			Data: base64.StdEncoding.EncodeToString(data),
		})
	}
	return out, nil
}

// transmissionError wraps a client error, lifting SparkPost's first error
// code and the HTTP status when available.
func transmissionError(err error) error {
	te := &courier.TransmissionError{
		Provider: name,
		Message:  err.Error(),
		Err:      err,
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		te.StatusCode = apiErr.StatusCode
		if len(apiErr.Errors) > 0 {
			te.Code = apiErr.Errors[0].Code
			te.Message = apiErr.Errors[0].Message
		}
	}

	slog.Warn("SparkPost rejected request",
		"status", te.StatusCode,
		"code", te.Code,
		"error", te.Message,
	)
	return te
}
