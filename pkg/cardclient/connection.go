package cardclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the default card service URL.
const DefaultBaseURL = "https://cards.capisc.io"

// Connection sends authenticated requests to the card service.
// Callers close the returned response body.
type Connection interface {
	Get(ctx context.Context, path, token string) (*http.Response, error)
	Post(ctx context.Context, path, token string, body io.Reader) (*http.Response, error)
}

// HTTPConnection is a Connection over net/http.
type HTTPConnection struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewHTTPConnection creates a connection with a 30 second timeout.
func NewHTTPConnection(baseURL string) *HTTPConnection {
	return NewHTTPConnectionWithHTTPClient(baseURL, nil)
}

// NewHTTPConnectionWithHTTPClient creates a connection using httpClient,
// or a default client if it is nil.
func NewHTTPConnectionWithHTTPClient(baseURL string, httpClient *http.Client) *HTTPConnection {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPConnection{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserAgent:  "capiscio-cards/1.0",
		HTTPClient: httpClient,
	}
}

// Get sends a GET request.
func (c *HTTPConnection) Get(ctx context.Context, path, token string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, token, nil)
}

// Post sends a POST request with a JSON body.
func (c *HTTPConnection) Post(ctx context.Context, path, token string, body io.Reader) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, token, body)
}

func (c *HTTPConnection) do(ctx context.Context, method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

var _ Connection = (*HTTPConnection)(nil)
