package postmark

import "fmt"

// Message is the request body for the Postmark /email endpoint.
type Message struct {
	From        string            `json:"From"`
	To          string            `json:"To"`
	Cc          string            `json:"Cc,omitempty"`
	Bcc         string            `json:"Bcc,omitempty"`
	Subject     string            `json:"Subject"`
	Tag         string            `json:"Tag,omitempty"`
	HTMLBody    *string           `json:"HtmlBody,omitempty"`
	TextBody    *string           `json:"TextBody,omitempty"`
	ReplyTo     string            `json:"ReplyTo,omitempty"`
	Headers     []Header          `json:"Headers,omitempty"`
	TrackOpens  bool              `json:"TrackOpens"`
	Attachments []Attachment      `json:"Attachments,omitempty"`
	Metadata    map[string]string `json:"Metadata,omitempty"`
}

// TemplatedMessage is the request body for the Postmark /email/withTemplate
// endpoint. Exactly one of TemplateID and TemplateAlias is set.
type TemplatedMessage struct {
	TemplateID    int64             `json:"TemplateId,omitempty"`
	TemplateAlias string            `json:"TemplateAlias,omitempty"`
	TemplateModel map[string]any    `json:"TemplateModel"`
	InlineCSS     bool              `json:"InlineCss"`
	From          string            `json:"From"`
	To            string            `json:"To"`
	Cc            string            `json:"Cc,omitempty"`
	Bcc           string            `json:"Bcc,omitempty"`
	Tag           string            `json:"Tag,omitempty"`
	ReplyTo       string            `json:"ReplyTo,omitempty"`
	Headers       []Header          `json:"Headers,omitempty"`
	TrackOpens    bool              `json:"TrackOpens"`
	Attachments   []Attachment      `json:"Attachments,omitempty"`
	Metadata      map[string]string `json:"Metadata,omitempty"`
}

// Header is a custom message header.
type Header struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// Attachment is a base64-encoded file. ContentID is set for inline images.
type Attachment struct {
	Name        string `json:"Name"`
	Content     string `json:"Content"`
	ContentType string `json:"ContentType"`
	ContentID   string `json:"ContentID,omitempty"`
}

// Response is the body Postmark returns for a send request.
type Response struct {
	To          string `json:"To"`
	SubmittedAt string `json:"SubmittedAt"`
	MessageID   string `json:"MessageID"`
	ErrorCode   int64  `json:"ErrorCode"`
	Message     string `json:"Message"`
}

// APIError is returned by the client when Postmark rejects a request.
type APIError struct {
	StatusCode int
	ErrorCode  int64
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Postmark API error (HTTP %d, code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
}
