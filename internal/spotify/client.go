// Package spotify provides a wrapper around the Spotify Web API covering
// the token lifecycle and playback control.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultAPIURL      = "https://api.spotify.com/v1"
	defaultAccountsURL = "https://accounts.spotify.com"
	userAgent          = "drift/1.0"
)

// TokenSource supplies the current token pair and performs a refresh.
// The session manager implements it; the client never stores tokens itself.
type TokenSource interface {
	// Token returns the current token, or nil when disconnected.
	Token(ctx context.Context) *oauth2.Token

	// Refresh exchanges the refresh token for a fresh access token and
	// records it. Called at most once per failed request.
	Refresh(ctx context.Context) (*oauth2.Token, error)
}

// Client talks to the Spotify accounts service and Web API.
type Client struct {
	httpClient   *http.Client
	apiURL       string
	accountsURL  string
	clientID     string
	clientSecret string
	redirectURI  string
	source       TokenSource
}

// Config holds the registered application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURLs overrides the remote endpoints, for tests.
func WithBaseURLs(apiURL, accountsURL string) Option {
	return func(c *Client) {
		c.apiURL = apiURL
		c.accountsURL = accountsURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		apiURL:       defaultAPIURL,
		accountsURL:  defaultAccountsURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource installs the token source used by authenticated calls.
func (c *Client) SetTokenSource(source TokenSource) {
	c.source = source
}

// response carries the outcome of one authenticated request.
type response struct {
	status int
	body   []byte
}

// authedDo performs an authenticated Web API request under the single-retry
// policy: attempt the call; on a 401, refresh exactly once through the token
// source and retry the original call once. Every authenticated endpoint goes
// through here so the retry invariant holds uniformly.
func (c *Client) authedDo(ctx context.Context, method, path string, body []byte) (*response, error) {
	if c.source == nil {
		return nil, ErrNoToken
	}
	token := c.source.Token(ctx)
	if token == nil || token.AccessToken == "" {
		return nil, ErrNoToken
	}

	resp, err := c.doOnce(ctx, method, path, body, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized {
		return resp, nil
	}

	refreshed, err := c.source.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	resp, err = c.doOnce(ctx, method, path, body, refreshed.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized {
		return nil, ErrAuthFailed
	}
	return resp, nil
}

// doOnce performs a single Web API request with the given bearer token.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, accessToken string) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &response{status: httpResp.StatusCode, body: respBody}, nil
}

// getJSON performs an authenticated GET and decodes a 200 response into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) (*response, error) {
	resp, err := c.authedDo(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusOK && v != nil {
		if err := json.Unmarshal(resp.body, v); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
	}
	return resp, nil
}
