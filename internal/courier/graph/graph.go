// Package graph implements a Courier that sends email through the Microsoft
// Graph sendMail API using OAuth2 client credentials.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shineum/courier/internal/courier"
	"github.com/shineum/courier/internal/email"
)

const name = "msgraph"

const (
	// DefaultBaseURL is the Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	// DefaultLoginURL is the Microsoft identity platform authority.
	DefaultLoginURL = "https://login.microsoftonline.com"
)

// Config holds the configuration for creating a Courier.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// BaseURL and LoginURL override the public cloud endpoints.
	BaseURL  string
	LoginURL string
}

// Courier delivers email as the mailbox named by the sender address. The
// application needs the Mail.Send permission for that mailbox.
type Courier struct {
	baseURL    string
	httpClient *http.Client
	token      *tokenSource
}

// New creates a Courier. A nil httpClient gets a client with a 30s timeout.
func New(cfg Config, httpClient *http.Client) *Courier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimSuffix(loginURL, "/"), cfg.TenantID)

	return &Courier{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		token:      newTokenSource(tokenURL, cfg.ClientID, cfg.ClientSecret, httpClient),
	}
}

// Name returns the courier name.
func (c *Courier) Name() string {
	return name
}

// Deliver sends msg with a single sendMail call. Graph has no stored
// templates, so only literal and empty content are supported. A 401 causes
// one token refresh and one resend.
func (c *Courier) Deliver(ctx context.Context, msg *email.Email) error {
	var body itemBody
	switch content := msg.Content.(type) {
	case email.SimpleContent:
		body = buildBody(content)
	case email.EmptyContent:
		body = itemBody{ContentType: "text"}
	default:
		return courier.UnsupportedContent(name, msg.Content)
	}

	req, err := buildSendMailRequest(msg, body)
	if err != nil {
		return err
	}
	bodyJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request body: %w", name, err)
	}

	slog.Debug("delivering email",
		"courier", name,
		"content", msg.Content.Kind(),
		"recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc),
		"attachments", len(msg.Attachments),
	)

	sendURL := fmt.Sprintf("%s/users/%s/sendMail", c.baseURL, url.PathEscape(msg.From.Email))

	token, err := c.token.Token(ctx)
	if err != nil {
		return transmissionError(err)
	}

	err = c.doSendRequest(ctx, sendURL, token, bodyJSON)
	if apiErr, ok := err.(*apiError); ok && apiErr.statusCode == http.StatusUnauthorized {
		slog.Info("refreshing Graph API token after 401")
		if token, err = c.token.Refresh(ctx); err != nil {
			return transmissionError(err)
		}
		err = c.doSendRequest(ctx, sendURL, token, bodyJSON)
	}
	if err != nil {
		return transmissionError(err)
	}

	slog.Debug("email accepted", "courier", name)
	return nil
}

// doSendRequest performs a single HTTP request to the sendMail endpoint.
func (c *Courier) doSendRequest(ctx context.Context, sendURL, token string, bodyJSON []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var errResp errorResponse
	if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
		return &apiError{statusCode: resp.StatusCode, code: errResp.Error.Code, message: errResp.Error.Message}
	}
	return &apiError{statusCode: resp.StatusCode, message: string(body)}
}

// apiError is a non-2xx response from the Graph API.
type apiError struct {
	statusCode int
	code       string
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}

func buildBody(content email.SimpleContent) itemBody {
	switch {
	case content.HTML != nil:
		return itemBody{ContentType: "html", Content: *content.HTML}
	case content.Text != nil:
		return itemBody{ContentType: "text", Content: *content.Text}
	default:
		return itemBody{ContentType: "text"}
	}
}

// buildSendMailRequest converts an email into a sendMail request body.
func buildSendMailRequest(msg *email.Email, body itemBody) (*sendMailRequest, error) {
	from := toRecipient(msg.From)

	m := message{
		Subject:       msg.Subject,
		Body:          body,
		From:          &from,
		ToRecipients:  toRecipients(msg.To),
		CcRecipients:  toRecipients(msg.Cc),
		BccRecipients: toRecipients(msg.Bcc),
		ReplyTo:       toRecipients(msg.ReplyTo),
	}

	for _, key := range msg.HeaderNames() {
		m.InternetMessageHeaders = append(m.InternetMessageHeaders, messageHeader{Name: key, Value: msg.Headers[key]})
	}

	for _, att := range msg.Attachments {
		data, err := att.Content()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", name, courier.ErrValidation, err)
		}
		m.Attachments = append(m.Attachments, fileAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.DisplayName(),
			ContentType:  att.MIMEType(data),
			ContentBytes: base64.StdEncoding.EncodeToString(data),
			ContentID:    att.ContentID,
			IsInline:     att.Inline(),
		})
	}

	return &sendMailRequest{Message: m, SaveToSentItems: true}, nil
}

func toRecipient(a email.Address) recipient {
	return recipient{EmailAddress: emailAddress{Address: a.Email, Name: a.Name}}
}

func toRecipients(addrs []email.Address) []recipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, toRecipient(a))
	}
	return out
}

func transmissionError(err error) error {
	te := &courier.TransmissionError{
		Provider: name,
		Message:  err.Error(),
		Err:      err,
	}
	if apiErr, ok := err.(*apiError); ok {
		te.StatusCode = apiErr.statusCode
		te.Code = apiErr.code
		te.Message = apiErr.message
	}

	slog.Warn("Graph API rejected request",
		"status", te.StatusCode,
		"code", te.Code,
		"error", te.Message,
	)
	return te
}
