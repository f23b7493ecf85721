package sparkpost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the SparkPost API endpoint.
const DefaultBaseURL = "https://api.sparkpost.com/api/v1"

// defaultTimeout bounds a single API request.
const defaultTimeout = 30 * time.Second

// Client is the subset of the SparkPost API the courier uses.
type Client interface {
	CreateTransmission(ctx context.Context, tx *Transmission) (*TransmissionResult, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
}

// HTTPClient calls the SparkPost REST API with an API key.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a SparkPost API client. An empty baseURL selects
// DefaultBaseURL; a nil httpClient gets a client with a 30s timeout.
func NewHTTPClient(apiKey, baseURL string, httpClient *http.Client) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// CreateTransmission sends a transmission. Carbon copies are expanded into
// recipients the way SparkPost expects them on the wire.
func (c *HTTPClient) CreateTransmission(ctx context.Context, tx *Transmission) (*TransmissionResult, error) {
	var out struct {
		Results TransmissionResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/transmissions", expandCarbonCopies(tx), &out); err != nil {
		return nil, err
	}
	return &out.Results, nil
}

// GetTemplate reads the published version of a stored template.
func (c *HTTPClient) GetTemplate(ctx context.Context, id string) (*Template, error) {
	var out struct {
		Results Template `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/templates/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Results, nil
}

// do performs a single API request and decodes a 2xx response into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		bodyJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(bodyJSON)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil || len(apiErr.Errors) == 0 {
			apiErr.Errors = []ErrorDetail{{Message: string(respBody)}}
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// wireTransmission is the transmission body actually posted, with carbon
// copies folded into the recipient list.
type wireTransmission struct {
	Content          Content        `json:"content"`
	SubstitutionData map[string]any `json:"substitution_data,omitempty"`
	Recipients       []Recipient    `json:"recipients"`
}

// expandCarbonCopies appends cc and bcc recipients to the recipient list with
// header_to pointing at the primary recipients, and adds a CC header for
// inline content so cc recipients stay visible.
func expandCarbonCopies(tx *Transmission) *wireTransmission {
	out := &wireTransmission{
		Content:          tx.Content,
		SubstitutionData: tx.SubstitutionData,
		Recipients:       append([]Recipient(nil), tx.Recipients...),
	}
	if len(tx.CC) == 0 && len(tx.BCC) == 0 {
		return out
	}

	to := make([]string, 0, len(tx.Recipients))
	for _, r := range tx.Recipients {
		to = append(to, r.Address.Email)
	}
	headerTo := strings.Join(to, ",")

	for _, list := range [][]Recipient{tx.CC, tx.BCC} {
		for _, r := range list {
			r.Address.HeaderTo = headerTo
			out.Recipients = append(out.Recipients, r)
		}
	}

	if inline, ok := tx.Content.(*InlineContent); ok && len(tx.CC) > 0 {
		cc := make([]string, 0, len(tx.CC))
		for _, r := range tx.CC {
			cc = append(cc, r.Address.Email)
		}

		content := *inline
		content.Headers = make(map[string]string, len(inline.Headers)+1)
		for k, v := range inline.Headers {
			content.Headers[k] = v
		}
		content.Headers["CC"] = strings.Join(cc, ",")
		out.Content = &content
	}

	return out
}
