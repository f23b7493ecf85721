package postmark

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shineum/courier/internal/courier"
	"github.com/shineum/courier/internal/email"
)

// mockClient implements Client for testing.
type mockClient struct {
	sendFn          func(ctx context.Context, msg Message) (*Response, error)
	sendTemplatedFn func(ctx context.Context, msg TemplatedMessage) (*Response, error)

	sendCount          int
	sendTemplatedCount int
	lastMessage        Message
	lastTemplated      TemplatedMessage
}

func (m *mockClient) SendEmail(ctx context.Context, msg Message) (*Response, error) {
	m.sendCount++
	m.lastMessage = msg
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return &Response{MessageID: "0a129aee-e1cd-480d-b08d-4f48548ff48d"}, nil
}

func (m *mockClient) SendEmailWithTemplate(ctx context.Context, msg TemplatedMessage) (*Response, error) {
	m.sendTemplatedCount++
	m.lastTemplated = msg
	if m.sendTemplatedFn != nil {
		return m.sendTemplatedFn(ctx, msg)
	}
	return &Response{MessageID: "0a129aee-e1cd-480d-b08d-4f48548ff48d"}, nil
}

// unknownContent is a content variant no courier maps.
type unknownContent struct{}

func (unknownContent) Kind() string { return "unknown" }

func strPtr(s string) *string { return &s }

func writeAttachment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postmark_attachment_test.txt")
	if err := os.WriteFile(path, []byte("Attachment file"), 0o600); err != nil {
		t.Fatalf("failed to write attachment: %v", err)
	}
	return path
}

func fullEmail(path string, content email.Content, charset string) *email.Email {
	return &email.Email{
		Subject: "Test From Postmark API",
		From:    email.MustAddress("sender@test.com", "Sender"),
		To: []email.Address{
			email.MustAddress("receiver@test.com", ""),
			email.MustAddress("other@test.com", ""),
		},
		Cc:      []email.Address{email.MustAddress("copy@test.com", "")},
		Bcc:     []email.Address{email.MustAddress("blind.copy@test.com", "")},
		ReplyTo: []email.Address{email.MustAddress("reply.to@test.com", "Replier")},
		Content: content,
		Attachments: []email.Attachment{
			{Path: path, Name: "Test File", Charset: charset},
			{Path: path, Name: "image.jpg", ContentID: "inline"},
		},
		Headers: map[string]string{"X-Test-Header": "test"},
	}
}

func expectedAttachments(charset string) []Attachment {
	encoded := base64.StdEncoding.EncodeToString([]byte("Attachment file"))
	return []Attachment{
		{
			Name:        "Test File",
			Content:     encoded,
			ContentType: `text/plain; name="Test File"; charset="` + charset + `"`,
		},
		{
			Name:        "image.jpg",
			Content:     encoded,
			ContentType: `text/plain; name="image.jpg"`,
			ContentID:   "inline",
		},
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	c := NewWithClient(&mockClient{})
	if got := c.Name(); got != "postmark" {
		t.Errorf("Name(): got %q, want %q", got, "postmark")
	}
}

func TestDeliver_SimpleContent(t *testing.T) {
	t.Parallel()

	path := writeAttachment(t)
	mock := &mockClient{}
	c := NewWithClient(mock)

	content := email.HTMLContent("<b>Test from Postmark</b>").WithText("Test from Postmark")
	err := c.Deliver(context.Background(), fullEmail(path, content, "utf-8"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.sendCount != 1 {
		t.Errorf("send count: got %d, want 1", mock.sendCount)
	}
	if mock.sendTemplatedCount != 0 {
		t.Errorf("templated send count: got %d, want 0", mock.sendTemplatedCount)
	}

	want := Message{
		From:        `"Sender" <sender@test.com>`,
		To:          "receiver@test.com,other@test.com",
		Cc:          "copy@test.com",
		Bcc:         "blind.copy@test.com",
		Subject:     "Test From Postmark API",
		HTMLBody:    strPtr("<b>Test from Postmark</b>"),
		TextBody:    strPtr("Test from Postmark"),
		ReplyTo:     `"Replier" <reply.to@test.com>`,
		Headers:     []Header{{Name: "X-Test-Header", Value: "test"}},
		TrackOpens:  true,
		Attachments: expectedAttachments("utf-8"),
	}
	if diff := cmp.Diff(want, mock.lastMessage); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliver_TemplatedContent(t *testing.T) {
	t.Parallel()

	path := writeAttachment(t)
	mock := &mockClient{}
	c := NewWithClient(mock)

	msg := fullEmail(path, email.Templated("1111", map[string]any{
		"product_name": "Wonderful Product",
		"name":         "Buyer",
	}), "utf-16")
	msg.Subject = "Template Test From Postmark API"

	if err := c.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.sendTemplatedCount != 1 {
		t.Errorf("templated send count: got %d, want 1", mock.sendTemplatedCount)
	}
	if mock.sendCount != 0 {
		t.Errorf("send count: got %d, want 0", mock.sendCount)
	}

	want := TemplatedMessage{
		TemplateID: 1111,
		TemplateModel: map[string]any{
			"subject":      "Template Test From Postmark API",
			"product_name": "Wonderful Product",
			"name":         "Buyer",
		},
		From:        `"Sender" <sender@test.com>`,
		To:          "receiver@test.com,other@test.com",
		Cc:          "copy@test.com",
		Bcc:         "blind.copy@test.com",
		ReplyTo:     `"Replier" <reply.to@test.com>`,
		Headers:     []Header{{Name: "X-Test-Header", Value: "test"}},
		TrackOpens:  true,
		Attachments: expectedAttachments("utf-16"),
	}
	if diff := cmp.Diff(want, mock.lastTemplated); diff != "" {
		t.Errorf("templated message mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliver_TemplateAlias(t *testing.T) {
	t.Parallel()

	mock := &mockClient{}
	c := NewWithClient(mock)

	msg := &email.Email{
		Subject: "Welcome",
		From:    email.MustAddress("sender@test.com", ""),
		To:      []email.Address{email.MustAddress("receiver@test.com", "")},
		Content: email.Templated("welcome-v2", nil),
	}

	if err := c.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := mock.lastTemplated
	if got.TemplateID != 0 {
		t.Errorf("TemplateID: got %d, want 0", got.TemplateID)
	}
	if got.TemplateAlias != "welcome-v2" {
		t.Errorf("TemplateAlias: got %q, want %q", got.TemplateAlias, "welcome-v2")
	}
	if diff := cmp.Diff(map[string]any{"subject": "Welcome"}, got.TemplateModel); diff != "" {
		t.Errorf("TemplateModel mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliver_SimpleContentClientError(t *testing.T) {
	t.Parallel()

	mock := &mockClient{
		sendFn: func(ctx context.Context, msg Message) (*Response, error) {
			return nil, &APIError{StatusCode: 400, ErrorCode: 1234, Message: "Error occurred"}
		},
	}
	c := NewWithClient(mock)

	msg := &email.Email{
		Subject: "Test From Postmark API",
		From:    email.MustAddress("sender@test.com", "Sender"),
		To:      []email.Address{email.MustAddress("receiver@test.com", "")},
		Content: email.SimpleContent{HTML: strPtr("")},
	}

	err := c.Deliver(context.Background(), msg)
	if !errors.Is(err, courier.ErrTransmission) {
		t.Fatalf("expected ErrTransmission, got %v", err)
	}

	var te *courier.TransmissionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransmissionError, got %T", err)
	}
	if te.Code != "1234" {
		t.Errorf("Code: got %q, want %q", te.Code, "1234")
	}
	if te.StatusCode != 400 {
		t.Errorf("StatusCode: got %d, want 400", te.StatusCode)
	}
	if te.Message != "Error occurred" {
		t.Errorf("Message: got %q, want %q", te.Message, "Error occurred")
	}

	want := Message{
		From:       `"Sender" <sender@test.com>`,
		To:         "receiver@test.com",
		Subject:    "Test From Postmark API",
		HTMLBody:   strPtr(""),
		TrackOpens: true,
	}
	if diff := cmp.Diff(want, mock.lastMessage); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliver_TemplatedContentClientError(t *testing.T) {
	t.Parallel()

	mock := &mockClient{
		sendTemplatedFn: func(ctx context.Context, msg TemplatedMessage) (*Response, error) {
			return nil, &APIError{StatusCode: 422, ErrorCode: 1101, Message: "Template not found"}
		},
	}
	c := NewWithClient(mock)

	msg := &email.Email{
		Subject: "Template Test From Postmark API",
		From:    email.MustAddress("sender@test.com", "Sender"),
		To:      []email.Address{email.MustAddress("receiver@test.com", "")},
		Content: email.Templated("1234", map[string]any{}),
	}

	err := c.Deliver(context.Background(), msg)
	var te *courier.TransmissionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransmissionError, got %v", err)
	}
	if te.StatusCode != 422 || te.Code != "1101" {
		t.Errorf("got status %d code %q, want 422 and 1101", te.StatusCode, te.Code)
	}
	if mock.lastTemplated.TemplateID != 1234 {
		t.Errorf("TemplateID: got %d, want 1234", mock.lastTemplated.TemplateID)
	}
	if mock.lastTemplated.Headers != nil {
		t.Errorf("Headers: got %v, want nil", mock.lastTemplated.Headers)
	}
}

func TestDeliver_NetworkError(t *testing.T) {
	t.Parallel()

	mock := &mockClient{
		sendFn: func(ctx context.Context, msg Message) (*Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := NewWithClient(mock)

	msg := &email.Email{
		From:    email.MustAddress("sender@test.com", ""),
		To:      []email.Address{email.MustAddress("receiver@test.com", "")},
		Content: email.TextContent("hi"),
	}

	err := c.Deliver(context.Background(), msg)
	var te *courier.TransmissionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransmissionError, got %v", err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode: got %d, want 0", te.StatusCode)
	}
	if te.Message != "connection refused" {
		t.Errorf("Message: got %q, want %q", te.Message, "connection refused")
	}
}

func TestDeliver_UnsupportedContent(t *testing.T) {
	t.Parallel()

	contents := map[string]email.Content{
		"unknown": unknownContent{},
		"empty":   email.EmptyContent{},
		"nil":     nil,
	}

	for name, content := range contents {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mock := &mockClient{}
			c := NewWithClient(mock)

			msg := &email.Email{
				Subject: "Subject",
				From:    email.MustAddress("sender@test.com", ""),
				To:      []email.Address{email.MustAddress("recipient@test.com", "")},
				Content: content,
			}

			err := c.Deliver(context.Background(), msg)
			if !errors.Is(err, courier.ErrUnsupportedContent) {
				t.Fatalf("expected ErrUnsupportedContent, got %v", err)
			}
			if mock.sendCount+mock.sendTemplatedCount != 0 {
				t.Errorf("client calls: got %d, want 0", mock.sendCount+mock.sendTemplatedCount)
			}
		})
	}
}

func TestDeliver_AttachmentRoundTrip(t *testing.T) {
	t.Parallel()

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write attachment: %v", err)
	}

	mock := &mockClient{}
	c := NewWithClient(mock)

	msg := &email.Email{
		From:        email.MustAddress("sender@test.com", ""),
		To:          []email.Address{email.MustAddress("receiver@test.com", "")},
		Content:     email.TextContent("see attached"),
		Attachments: []email.Attachment{email.FileAttachment(path, "")},
	}

	if err := c.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	att := mock.lastMessage.Attachments[0]
	if att.Name != "blob.bin" {
		t.Errorf("Name: got %q, want %q", att.Name, "blob.bin")
	}
	decoded, err := base64.StdEncoding.DecodeString(att.Content)
	if err != nil {
		t.Fatalf("failed to decode attachment: %v", err)
	}
	if diff := cmp.Diff(data, decoded); diff != "" {
		t.Errorf("attachment bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliver_MissingAttachmentFile(t *testing.T) {
	t.Parallel()

	mock := &mockClient{}
	c := NewWithClient(mock)

	msg := &email.Email{
		From:        email.MustAddress("sender@test.com", ""),
		To:          []email.Address{email.MustAddress("receiver@test.com", "")},
		Content:     email.TextContent("see attached"),
		Attachments: []email.Attachment{email.FileAttachment(filepath.Join(t.TempDir(), "missing.txt"), "")},
	}

	err := c.Deliver(context.Background(), msg)
	if !errors.Is(err, courier.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if mock.sendCount != 0 {
		t.Errorf("send count: got %d, want 0", mock.sendCount)
	}
}

// Verify Courier implements courier.Courier.
func TestCourierInterface(t *testing.T) {
	t.Parallel()

	var _ courier.Courier = (*Courier)(nil)
}
