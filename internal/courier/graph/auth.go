package graph

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenExpiryBuffer is subtracted from the advertised lifetime so a token is
// never used while it is about to expire.
const tokenExpiryBuffer = 5 * time.Minute

// defaultScope requests the application permissions granted to the client.
const defaultScope = "https://graph.microsoft.com/.default"

// tokenSource hands out client-credentials access tokens, caching each one
// until shortly before it expires. Safe for concurrent use.
type tokenSource struct {
	mu    sync.Mutex
	token *oauth2.Token

	cfg        clientcredentials.Config
	httpClient *http.Client
}

func newTokenSource(tokenURL, clientID, clientSecret string, httpClient *http.Client) *tokenSource {
	return &tokenSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{defaultScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

// Token returns the cached token, fetching a new one when none is held or the
// held one is within tokenExpiryBuffer of expiring.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != nil && time.Now().Add(tokenExpiryBuffer).Before(ts.token.Expiry) {
		return ts.token.AccessToken, nil
	}
	return ts.fetch(ctx)
}

// Refresh drops the cached token and fetches a new one. Used after the API
// rejects a token with 401.
func (ts *tokenSource) Refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.token = nil
	return ts.fetch(ctx)
}

// fetch calls the token endpoint. The caller must hold ts.mu.
func (ts *tokenSource) fetch(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.httpClient)

	tok, err := ts.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	ts.token = tok
	return tok.AccessToken, nil
}
