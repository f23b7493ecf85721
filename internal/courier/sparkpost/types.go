package sparkpost

import (
	"encoding/json"
	"fmt"
)

// Transmission is the payload of a transmission create call.
type Transmission struct {
	Content          Content        `json:"content"`
	SubstitutionData map[string]any `json:"substitution_data,omitempty"`
	Recipients       []Recipient    `json:"recipients"`
	CC               []Recipient    `json:"cc,omitempty"`
	BCC              []Recipient    `json:"bcc,omitempty"`
}

// Content is the "content" object of a transmission: either *InlineContent
// or StoredContent.
type Content interface {
	transmissionContent()
}

// InlineContent is a fully specified message. Absent bodies and reply-to are
// sent as JSON null.
type InlineContent struct {
	From        Sender            `json:"from"`
	Subject     string            `json:"subject"`
	HTML        *string           `json:"html"`
	Text        *string           `json:"text"`
	Attachments []Attachment      `json:"attachments"`
	ReplyTo     *string           `json:"reply_to"`
	Headers     map[string]string `json:"headers,omitempty"`
}

func (*InlineContent) transmissionContent() {}

// StoredContent references a template stored at SparkPost.
type StoredContent struct {
	TemplateID string `json:"template_id"`
}

func (StoredContent) transmissionContent() {}

// Sender is a from address. Templates may store it as a plain string, which
// UnmarshalJSON accepts.
type Sender struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

func (s *Sender) UnmarshalJSON(data []byte) error {
	var addr string
	if err := json.Unmarshal(data, &addr); err == nil {
		*s = Sender{Email: addr}
		return nil
	}

	type sender Sender
	var obj sender
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	*s = Sender(obj)
	return nil
}

// Recipient is one entry of the recipients, cc or bcc lists.
type Recipient struct {
	Address RecipientAddress `json:"address"`
}

// RecipientAddress identifies a recipient. HeaderTo is only set for carbon
// copies, which SparkPost delivers as extra recipients.
type RecipientAddress struct {
	Name     *string `json:"name"`
	Email    string  `json:"email"`
	HeaderTo string  `json:"header_to,omitempty"`
}

// Attachment is a base64-encoded file.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// TransmissionResult is returned by a successful transmission create call.
type TransmissionResult struct {
	ID                      string `json:"id"`
	TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
	TotalRejectedRecipients int    `json:"total_rejected_recipients"`
}

// Template is a stored template as returned by the template read call.
type Template struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Content TemplateContent `json:"content"`
}

// TemplateContent holds the fields of a stored template. Any of them may
// contain substitution placeholders such as {{fromEmail}}.
type TemplateContent struct {
	From    Sender            `json:"from"`
	Subject string            `json:"subject"`
	ReplyTo string            `json:"reply_to"`
	HTML    *string           `json:"html"`
	Text    *string           `json:"text"`
	Headers map[string]string `json:"headers"`
}

// APIError is returned by the client when SparkPost rejects a request.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail `json:"errors"`
}

// ErrorDetail is one entry of a SparkPost error response.
type ErrorDetail struct {
	Message     string `json:"message"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("SparkPost API error (HTTP %d)", e.StatusCode)
	}
	d := e.Errors[0]
	if d.Description != "" {
		return fmt.Sprintf("SparkPost API error (HTTP %d, code %s): %s: %s", e.StatusCode, d.Code, d.Message, d.Description)
	}
	return fmt.Sprintf("SparkPost API error (HTTP %d, code %s): %s", e.StatusCode, d.Code, d.Message)
}
