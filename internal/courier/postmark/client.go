package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the Postmark API endpoint.
const DefaultBaseURL = "https://api.postmarkapp.com"

// defaultTimeout bounds a single API request.
const defaultTimeout = 30 * time.Second

// Client is the subset of the Postmark API the courier uses.
type Client interface {
	SendEmail(ctx context.Context, msg Message) (*Response, error)
	SendEmailWithTemplate(ctx context.Context, msg TemplatedMessage) (*Response, error)
}

// HTTPClient calls the Postmark REST API with a server token.
type HTTPClient struct {
	baseURL     string
	serverToken string
	httpClient  *http.Client
}

// NewHTTPClient creates a Postmark API client. An empty baseURL selects
// DefaultBaseURL; a nil httpClient gets a client with a 30s timeout.
func NewHTTPClient(serverToken, baseURL string, httpClient *http.Client) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPClient{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		serverToken: serverToken,
		httpClient:  httpClient,
	}
}

// SendEmail sends a message with literal bodies.
func (c *HTTPClient) SendEmail(ctx context.Context, msg Message) (*Response, error) {
	return c.post(ctx, "/email", msg)
}

// SendEmailWithTemplate sends a message rendered from a stored template.
func (c *HTTPClient) SendEmailWithTemplate(ctx context.Context, msg TemplatedMessage) (*Response, error) {
	return c.post(ctx, "/email/withTemplate", msg)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) (*Response, error) {
	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result Response
	if jsonErr := json.Unmarshal(body, &result); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}
		return nil, fmt.Errorf("failed to parse response: %w", jsonErr)
	}

	if resp.StatusCode != http.StatusOK || result.ErrorCode != 0 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorCode:  result.ErrorCode,
			Message:    result.Message,
		}
	}

	return &result, nil
}
