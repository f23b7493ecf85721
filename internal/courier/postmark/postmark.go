// Package postmark implements a Courier that delivers email through the
// Postmark API.
package postmark

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shineum/courier/internal/courier"
	"github.com/shineum/courier/internal/email"
)

const name = "postmark"

// Config holds the configuration for creating a Courier.
type Config struct {
	ServerToken string
	BaseURL     string
}

// Courier maps emails onto Postmark's flat message fields.
type Courier struct {
	client Client
}

// New creates a Courier backed by the Postmark REST API.
func New(cfg Config) *Courier {
	return NewWithClient(NewHTTPClient(cfg.ServerToken, cfg.BaseURL, nil))
}

// NewWithClient creates a Courier with a custom client, used for testing.
func NewWithClient(client Client) *Courier {
	return &Courier{client: client}
}

// Name returns the courier name.
func (c *Courier) Name() string {
	return name
}

// Deliver sends msg with Postmark's "send" or "send with template"
// operation depending on its content. Empty content is not supported.
func (c *Courier) Deliver(ctx context.Context, msg *email.Email) error {
	switch content := msg.Content.(type) {
	case email.SimpleContent:
		return c.deliverSimple(ctx, msg, content)
	case email.TemplatedContent:
		return c.deliverTemplated(ctx, msg, content)
	default:
		return courier.UnsupportedContent(name, msg.Content)
	}
}

func (c *Courier) deliverSimple(ctx context.Context, msg *email.Email, content email.SimpleContent) error {
	attachments, err := buildAttachments(msg.Attachments)
	if err != nil {
		return err
	}

	out := Message{
		From:        msg.From.String(),
		To:          courier.JoinAddresses(msg.To),
		Cc:          courier.JoinAddresses(msg.Cc),
		Bcc:         courier.JoinAddresses(msg.Bcc),
		Subject:     msg.Subject,
		HTMLBody:    content.HTML,
		TextBody:    content.Text,
		ReplyTo:     formatReplyTo(msg.ReplyTo),
		Headers:     buildHeaders(msg),
		TrackOpens:  true,
		Attachments: attachments,
	}

	slog.Debug("delivering email",
		"courier", name,
		"content", email.KindSimple,
		"recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc),
		"attachments", len(attachments),
	)

	resp, err := c.client.SendEmail(ctx, out)
	if err != nil {
		return transmissionError(err)
	}

	slog.Debug("email accepted", "courier", name, "message_id", resp.MessageID)
	return nil
}

func (c *Courier) deliverTemplated(ctx context.Context, msg *email.Email, content email.TemplatedContent) error {
	attachments, err := buildAttachments(msg.Attachments)
	if err != nil {
		return err
	}

	model := make(map[string]any, len(content.Data)+1)
	model["subject"] = msg.Subject
	for k, v := range content.Data {
		model[k] = v
	}

	out := TemplatedMessage{
		TemplateModel: model,
		From:          msg.From.String(),
		To:            courier.JoinAddresses(msg.To),
		Cc:            courier.JoinAddresses(msg.Cc),
		Bcc:           courier.JoinAddresses(msg.Bcc),
		ReplyTo:       formatReplyTo(msg.ReplyTo),
		Headers:       buildHeaders(msg),
		TrackOpens:    true,
		Attachments:   attachments,
	}

	// Postmark identifies templates numerically; anything else is an alias.
	if id, err := strconv.ParseInt(content.TemplateID, 10, 64); err == nil {
		out.TemplateID = id
	} else {
		out.TemplateAlias = content.TemplateID
	}

	slog.Debug("delivering email",
		"courier", name,
		"content", email.KindTemplated,
		"template", content.TemplateID,
		"recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc),
		"attachments", len(attachments),
	)

	resp, err := c.client.SendEmailWithTemplate(ctx, out)
	if err != nil {
		return transmissionError(err)
	}

	slog.Debug("email accepted", "courier", name, "message_id", resp.MessageID)
	return nil
}

// formatReplyTo renders the reply-to addresses with display names, or ""
// when there are none.
func formatReplyTo(addrs []email.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}

// buildHeaders converts the custom headers into Postmark's list form, sorted
// by name. An empty map yields nil.
func buildHeaders(msg *email.Email) []Header {
	if len(msg.Headers) == 0 {
		return nil
	}
	headers := make([]Header, 0, len(msg.Headers))
	for _, n := range msg.HeaderNames() {
		headers = append(headers, Header{Name: n, Value: msg.Headers[n]})
	}
	return headers
}

// buildAttachments reads and encodes every attachment. The content type
// carries the display name and, when overridden, the charset.
func buildAttachments(atts []email.Attachment) ([]Attachment, error) {
	if len(atts) == 0 {
		return nil, nil
	}

	out := make([]Attachment, 0, len(atts))
	for _, att := range atts {
		data, err := att.Content()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", name, courier.ErrValidation, err)
		}

		displayName := att.DisplayName()
		contentType := fmt.Sprintf(`%s; name="%s"`, att.MIMEType(data), displayName)
		if att.Charset != "" {
			contentType += fmt.Sprintf(`; charset="%s"`, att.Charset)
		}

		out = append(out, Attachment{
			Name:        displayName,
			Content:     base64.StdEncoding.EncodeToString(data),
			ContentType: contentType,
			ContentID:   att.ContentID,
		})
	}
	return out, nil
}

// transmissionError wraps a client error, lifting Postmark's error code and
// HTTP status when available.
func transmissionError(err error) error {
	te := &courier.TransmissionError{
		Provider: name,
		Message:  err.Error(),
		Err:      err,
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		te.Code = strconv.FormatInt(apiErr.ErrorCode, 10)
		te.StatusCode = apiErr.StatusCode
		te.Message = apiErr.Message
	}

	slog.Warn("Postmark rejected email",
		"status", te.StatusCode,
		"code", te.Code,
		"error", te.Message,
	)
	return te
}
