// Package pinmeto is the upstream review source: a thin client for the
// PinMeTo listings API with OAuth client-credentials auth and transparent
// pagination.
package pinmeto

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Access tokens are valid for an hour upstream; refreshing a minute early
// avoids racing the expiry.
const tokenCacheTTL = 59 * time.Minute

// TokenSource fetches and caches an OAuth access token using the
// client-credentials grant. Safe for concurrent use.
type TokenSource struct {
	tokenURL  string
	appID     string
	appSecret string
	client    *http.Client

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

func NewTokenSource(apiURL, appID, appSecret string, client *http.Client) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenSource{
		tokenURL:  strings.TrimRight(apiURL, "/") + "/oauth/token",
		appID:     appID,
		appSecret: appSecret,
		client:    client,
	}
}

// Token returns a cached access token, refreshing it when the cache window
// has elapsed.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Since(ts.fetchedAt) < tokenCacheTTL {
		return ts.token, nil
	}

	token, err := ts.fetch(ctx)
	if err != nil {
		return "", err
	}
	ts.token = token
	ts.fetchedAt = time.Now()
	return token, nil
}

func (ts *TokenSource) fetch(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(ts.appID, ts.appSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access_token")
	}
	return payload.AccessToken, nil
}
