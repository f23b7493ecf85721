// Package parser converts RFC 5322 messages with MIME multipart bodies into
// the email model so existing .eml files can be delivered by any courier.
package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/shineum/courier/internal/email"
)

var wordDecoder = &mime.WordDecoder{}

// Parse parses a raw RFC 5322 message. Text and html parts become
// SimpleContent (EmptyContent when neither is present), parts with a
// filename or attachment disposition become attachments, and X- headers are
// carried over as custom headers. Unrecognized MIME parts are logged as
// warnings and skipped.
func Parse(raw []byte) (*email.Email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &email.Email{
		Subject: decodeHeader(msg.Header.Get("Subject")),
	}

	from, err := parseAddressList(msg.Header.Get("From"))
	if err != nil {
		return nil, fmt.Errorf("invalid From header: %w", err)
	}
	if len(from) != 1 {
		return nil, fmt.Errorf("message must have exactly one From address, got %d", len(from))
	}
	result.From = from[0]

	for _, field := range []struct {
		header string
		dst    *[]email.Address
	}{
		{"To", &result.To},
		{"Cc", &result.Cc},
		{"Bcc", &result.Bcc},
		{"Reply-To", &result.ReplyTo},
	} {
		addrs, err := parseAddressList(msg.Header.Get(field.header))
		if err != nil {
			return nil, fmt.Errorf("invalid %s header: %w", field.header, err)
		}
		*field.dst = addrs
	}

	for key, values := range msg.Header {
		if strings.HasPrefix(key, "X-") && len(values) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			result.Headers[key] = decodeHeader(values[0])
		}
	}

	var b body
	if err := b.read(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body); err != nil {
		return nil, err
	}
	result.Content = b.content()
	result.Attachments = b.attachments

	return result, nil
}

// body accumulates the parts found while walking the MIME tree.
type body struct {
	text        *string
	html        *string
	attachments []email.Attachment
}

func (b *body) content() email.Content {
	if b.text == nil && b.html == nil {
		return email.EmptyContent{}
	}
	return email.SimpleContent{HTML: b.html, Text: b.text}
}

// read handles the top-level body of a message.
func (b *body) read(contentType, encoding string, r io.Reader) error {
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// If content type is unparseable, treat as plain text
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return errors.New("multipart message missing boundary")
		}
		if err := b.readMultipart(r, boundary); err != nil {
			return fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return nil
	}

	content, err := decodeContent(r, encoding)
	if err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}
	s := string(content)
	switch mediaType {
	case "text/html":
		b.html = &s
	case "text/plain":
		b.text = &s
	default:
		slog.Warn("unrecognized top-level content type",
			"content_type", mediaType,
		)
		b.text = &s
	}
	return nil
}

// readMultipart processes a multipart body, recursing into nested
// multiparts. The first text/plain and text/html parts win.
func (b *body) readMultipart(r io.Reader, boundary string) error {
	reader := multipart.NewReader(r, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}

		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partContentType,
				"error", err,
			)
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			nestedBoundary := params["boundary"]
			if nestedBoundary == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := b.readMultipart(part, nestedBoundary); err != nil {
				slog.Warn("failed to parse nested multipart", "error", err)
			}
			continue
		}

		// multipart.Reader already strips quoted-printable encoding.
		content, err := decodeContent(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		filename := extractFilename(part, params)
		isFile := disposition == "attachment" || (disposition == "inline" && filename != "")

		if !isFile {
			s := string(content)
			switch {
			case mediaType == "text/plain" && b.text == nil:
				b.text = &s
				continue
			case mediaType == "text/html" && b.html == nil:
				b.html = &s
				continue
			case filename == "":
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
					"disposition", disposition,
				)
				continue
			}
		}

		if filename == "" {
			filename = fallbackFilename(mediaType)
		}
		att := email.Attachment{
			Name:        filename,
			Data:        content,
			ContentType: mediaType,
			Charset:     params["charset"],
			ContentID:   strings.Trim(part.Header.Get("Content-Id"), "<> "),
		}
		b.attachments = append(b.attachments, att)
	}
}

// decodeContent reads r, undoing base64 or quoted-printable transfer
// encoding. Other encodings are returned as-is.
func decodeContent(r io.Reader, encoding string) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			// Try with RawStdEncoding for unpadded base64
			decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 content: %w", err)
			}
		}
		return decoded, nil
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
	default:
		return raw, nil
	}
}

// extractFilename returns the Content-Disposition filename, falling back to
// the Content-Type name parameter.
func extractFilename(part *multipart.Part, params map[string]string) string {
	if fn := part.FileName(); fn != "" {
		return fn
	}
	if name, ok := params["name"]; ok && name != "" {
		return decodeHeader(name)
	}
	return ""
}

func fallbackFilename(mediaType string) string {
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return "attachment." + sub
	}
	return "attachment"
}

// parseAddressList parses a header address list, keeping display names.
func parseAddressList(raw string) ([]email.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parser := mail.AddressParser{WordDecoder: wordDecoder}
	addresses, err := parser.ParseList(raw)
	if err != nil {
		return nil, err
	}

	result := make([]email.Address, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, email.Address{Email: addr.Address, Name: addr.Name})
	}
	return result, nil
}

func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
