package postmark

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClient_SendEmail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/email" {
			t.Errorf("path: got %q, want %q", r.URL.Path, "/email")
		}
		if got := r.Header.Get("X-Postmark-Server-Token"); got != "server-token" {
			t.Errorf("server token: got %q, want %q", got, "server-token")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["From"] != "sender@test.com" {
			t.Errorf("From: got %v, want %q", body["From"], "sender@test.com")
		}
		if body["TrackOpens"] != true {
			t.Errorf("TrackOpens: got %v, want true", body["TrackOpens"])
		}
		if _, ok := body["TextBody"]; ok {
			t.Error("TextBody should be omitted when absent")
		}
		if body["HtmlBody"] != "" {
			t.Errorf("HtmlBody: got %v, want empty string", body["HtmlBody"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{
			To:        "receiver@test.com",
			MessageID: "msg-123",
			ErrorCode: 0,
			Message:   "OK",
		})
	}))
	defer server.Close()

	client := NewHTTPClient("server-token", server.URL, server.Client())

	empty := ""
	resp, err := client.SendEmail(context.Background(), Message{
		From:       "sender@test.com",
		To:         "receiver@test.com",
		Subject:    "Subject",
		HTMLBody:   &empty,
		TrackOpens: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.MessageID != "msg-123" {
		t.Errorf("MessageID: got %q, want %q", resp.MessageID, "msg-123")
	}
}

func TestHTTPClient_SendEmailWithTemplate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/email/withTemplate" {
			t.Errorf("path: got %q, want %q", r.URL.Path, "/email/withTemplate")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["TemplateId"] != float64(1111) {
			t.Errorf("TemplateId: got %v, want 1111", body["TemplateId"])
		}
		if _, ok := body["TemplateAlias"]; ok {
			t.Error("TemplateAlias should be omitted when TemplateId is set")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{MessageID: "msg-456"})
	}))
	defer server.Close()

	client := NewHTTPClient("server-token", server.URL, server.Client())

	resp, err := client.SendEmailWithTemplate(context.Background(), TemplatedMessage{
		TemplateID:    1111,
		TemplateModel: map[string]any{"subject": "Hello"},
		From:          "sender@test.com",
		To:            "receiver@test.com",
		TrackOpens:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.MessageID != "msg-456" {
		t.Errorf("MessageID: got %q, want %q", resp.MessageID, "msg-456")
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(Response{
			ErrorCode: 300,
			Message:   "Invalid 'From' address",
		})
	}))
	defer server.Close()

	client := NewHTTPClient("server-token", server.URL, server.Client())

	_, err := client.SendEmail(context.Background(), Message{From: "bad", To: "receiver@test.com"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode: got %d, want %d", apiErr.StatusCode, http.StatusUnprocessableEntity)
	}
	if apiErr.ErrorCode != 300 {
		t.Errorf("ErrorCode: got %d, want 300", apiErr.ErrorCode)
	}
	if apiErr.Message != "Invalid 'From' address" {
		t.Errorf("Message: got %q, want %q", apiErr.Message, "Invalid 'From' address")
	}
}

func TestHTTPClient_NonJSONError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	client := NewHTTPClient("server-token", server.URL, server.Client())

	_, err := client.SendEmail(context.Background(), Message{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode: got %d, want %d", apiErr.StatusCode, http.StatusBadGateway)
	}
	if apiErr.Message != "bad gateway" {
		t.Errorf("Message: got %q, want %q", apiErr.Message, "bad gateway")
	}
}

func TestNewHTTPClient_Defaults(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient("token", "", nil)
	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL: got %q, want %q", client.baseURL, DefaultBaseURL)
	}
	if client.httpClient.Timeout != defaultTimeout {
		t.Errorf("timeout: got %v, want %v", client.httpClient.Timeout, defaultTimeout)
	}
}
