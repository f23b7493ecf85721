// Package ses implements a Courier that sends emails via AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/shineum/courier/internal/courier"
	"github.com/shineum/courier/internal/email"
)

const name = "ses"

// Config holds the configuration for creating a Courier.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Courier sends emails via the AWS SES v2 API.
type Courier struct {
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new Courier with the given configuration.
func New(ctx context.Context, cfg Config) (*Courier, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Courier with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *Courier {
	return &Courier{client: client}
}

// Name returns the courier name.
func (s *Courier) Name() string {
	return name
}

// Deliver sends msg via AWS SES v2.
// Literal content without attachments or custom headers uses the SES simple
// format; otherwise a raw MIME message is built. Templated content uses an
// SES stored template and cannot carry attachments or custom headers.
func (s *Courier) Deliver(ctx context.Context, msg *email.Email) error {
	var (
		input *sesv2.SendEmailInput
		err   error
	)

	switch content := msg.Content.(type) {
	case email.SimpleContent:
		input, err = buildBodyInput(msg, content.HTML, content.Text)
	case email.EmptyContent:
		empty := ""
		input, err = buildBodyInput(msg, nil, &empty)
	case email.TemplatedContent:
		input, err = buildTemplateInput(msg, content)
	default:
		return courier.UnsupportedContent(name, msg.Content)
	}
	if err != nil {
		return err
	}

	slog.Debug("delivering email",
		"courier", name,
		"content", msg.Content.Kind(),
		"raw", input.Content.Raw != nil,
	)

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return transmissionError(err)
	}

	slog.Debug("email accepted", "courier", name, "message_id", aws.ToString(out.MessageId))
	return nil
}

// buildBodyInput creates the SES input for literal content.
func buildBodyInput(msg *email.Email, html, text *string) (*sesv2.SendEmailInput, error) {
	input := baseInput(msg)

	if len(msg.Attachments) == 0 && len(msg.Headers) == 0 {
		input.Content = &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(msg.Subject),
				Body: &types.Body{
					Html: optionalContent(html),
					Text: optionalContent(text),
				},
			},
		}
		return input, nil
	}

	raw, err := buildRawMessage(msg, html, text)
	if err != nil {
		return nil, err
	}
	input.Content = &types.EmailContent{
		Raw: &types.RawMessage{Data: raw},
	}
	return input, nil
}

// buildTemplateInput creates the SES input for a stored template. The
// template data is the caller's variables plus the subject.
func buildTemplateInput(msg *email.Email, content email.TemplatedContent) (*sesv2.SendEmailInput, error) {
	if len(msg.Attachments) > 0 {
		return nil, fmt.Errorf("%s: %w: templated emails cannot carry attachments", name, courier.ErrValidation)
	}
	if len(msg.Headers) > 0 {
		return nil, fmt.Errorf("%s: %w: templated emails cannot carry custom headers", name, courier.ErrValidation)
	}

	data := make(map[string]any, len(content.Data)+1)
	data["subject"] = msg.Subject
	for k, v := range content.Data {
		data[k] = v
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: template data: %w", name, courier.ErrValidation, err)
	}

	input := baseInput(msg)
	input.Content = &types.EmailContent{
		Template: &types.Template{
			TemplateName: aws.String(content.TemplateID),
			TemplateData: aws.String(string(dataJSON)),
		},
	}
	return input, nil
}

// baseInput fills in the sender, destination and reply-to addresses.
func baseInput(msg *email.Email) *sesv2.SendEmailInput {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From.String()),
		Destination: &types.Destination{
			ToAddresses:  bareAddresses(msg.To),
			CcAddresses:  bareAddresses(msg.Cc),
			BccAddresses: bareAddresses(msg.Bcc),
		},
	}
	for _, a := range msg.ReplyTo {
		input.ReplyToAddresses = append(input.ReplyToAddresses, a.String())
	}
	return input
}

func bareAddresses(addrs []email.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Email)
	}
	return out
}

func utf8Content(data string) *types.Content {
	return &types.Content{
		Data:    aws.String(data),
		Charset: aws.String("UTF-8"),
	}
}

func optionalContent(data *string) *types.Content {
	if data == nil {
		return nil
	}
	return utf8Content(*data)
}

// buildRawMessage constructs a raw MIME message for emails with attachments
// or custom headers. Inline attachments get a Content-ID so the html body can
// reference them.
func buildRawMessage(msg *email.Email, html, text *string) ([]byte, error) {
	var buf bytes.Buffer

	// Write headers
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From.String())
	if len(msg.To) > 0 {
		fmt.Fprintf(&buf, "To: %s\r\n", joinFormatted(msg.To))
	}
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", joinFormatted(msg.Cc))
	}
	if len(msg.ReplyTo) > 0 {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", joinFormatted(msg.ReplyTo))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	for _, n := range msg.HeaderNames() {
		fmt.Fprintf(&buf, "%s: %s\r\n", textproto.CanonicalMIMEHeaderKey(n), msg.Headers[n])
	}
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	if err := writeBody(writer, html, text); err != nil {
		return nil, err
	}

	// Write attachments
	for _, att := range msg.Attachments {
		data, err := att.Content()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", name, courier.ErrValidation, err)
		}

		displayName := mime.QEncoding.Encode("UTF-8", att.DisplayName())
		contentType := fmt.Sprintf("%s; name=%q", att.MIMEType(data), displayName)
		if att.Charset != "" {
			contentType += fmt.Sprintf("; charset=%q", att.Charset)
		}

		disposition := "attachment"
		if att.Inline() {
			disposition = "inline"
		}

		attHeader := make(textproto.MIMEHeader)
		attHeader.Set("Content-Type", contentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, displayName))
		if att.Inline() {
			attHeader.Set("Content-ID", "<"+att.ContentID+">")
		}

		part, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := part.Write([]byte(encodeBase64WithLineBreaks(data))); err != nil {
			return nil, fmt.Errorf("failed to write attachment part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBody writes the body part. When both html and text are present they
// are wrapped in a multipart/alternative part.
func writeBody(writer *multipart.Writer, html, text *string) error {
	if html != nil && text != nil {
		var alt bytes.Buffer
		altWriter := multipart.NewWriter(&alt)
		if err := writeTextPart(altWriter, "text/plain", *text); err != nil {
			return err
		}
		if err := writeTextPart(altWriter, "text/html", *html); err != nil {
			return err
		}
		if err := altWriter.Close(); err != nil {
			return fmt.Errorf("failed to close alternative part: %w", err)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Type", "multipart/alternative; boundary="+altWriter.Boundary())
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("failed to create body part: %w", err)
		}
		_, err = part.Write(alt.Bytes())
		return err
	}

	switch {
	case html != nil:
		return writeTextPart(writer, "text/html", *html)
	case text != nil:
		return writeTextPart(writer, "text/plain", *text)
	default:
		return nil
	}
}

func writeTextPart(writer *multipart.Writer, mediaType, body string) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", mediaType+"; charset=UTF-8")
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create body part: %w", err)
	}
	_, err = part.Write([]byte(body))
	return err
}

func joinFormatted(addrs []email.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}

// transmissionError wraps an SES error, lifting the API error code and the
// HTTP status when available.
func transmissionError(err error) error {
	te := &courier.TransmissionError{
		Provider: name,
		Message:  err.Error(),
		Err:      err,
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		te.Code = apiErr.ErrorCode()
		te.Message = apiErr.ErrorMessage()
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		te.StatusCode = respErr.HTTPStatusCode()
	}

	slog.Warn("SES API error",
		"status", te.StatusCode,
		"code", te.Code,
		"error", te.Message,
	)
	return te
}
