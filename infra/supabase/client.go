package supabase

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

// Client is a Supabase REST API client. It is safe for concurrent use;
// WithToken returns a shallow copy scoped to one caller.
type Client struct {
	baseURL    string
	restURL    string
	authURL    string
	storageURL string

	apiKey     string
	serviceKey string
	token      string

	httpClient  *http.Client
	authClient  *http.Client
	authTimeout time.Duration
	transport   *gatewayTransport
	observer    Observer
}

// New creates a Supabase client with retry and circuit breaking on the
// gateway transport.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" && strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, fmt.Errorf("APIKey is required")
	}
	baseURL := strings.TrimRight(cfg.URL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}

	base := cfg.HTTPClient
	if base == nil {
		base = newPooledClient(cfg.Timeout)
	}
	transport := newGatewayTransport(base, cfg.Retry, cfg.Breaker)

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = cfg.ServiceKey
	}

	return &Client{
		baseURL:    baseURL,
		restURL:    baseURL + "/rest/v1",
		authURL:    baseURL + "/auth/v1",
		storageURL: baseURL + "/storage/v1",
		apiKey:     apiKey,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		authClient:  base,
		authTimeout: cfg.AuthTimeout,
		transport:   transport,
		observer:    cfg.Observer,
	}, nil
}

// WithToken returns a client whose requests carry the user's access token so
// row-level security applies to that user. An empty token returns c.
func (c *Client) WithToken(token string) *Client {
	if token == "" {
		return c
	}
	clone := *c
	clone.token = token
	return &clone
}

// BaseURL returns the project URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// CircuitState reports the gateway circuit breaker state.
func (c *Client) CircuitState() CircuitState { return c.transport.circuit.State() }

// bearer is the credential sent in Authorization: the user's token when
// scoped, else the service key, else the anon key.
func (c *Client) bearer() string {
	switch {
	case c.token != "":
		return c.token
	case c.serviceKey != "":
		return c.serviceKey
	default:
		return c.apiKey
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) newJSONRequest(ctx context.Context, method, reqURL string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and converts non-2xx responses into *Error.
func (c *Client) do(operation string, httpClient *http.Client, req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.observe(operation, 0, start)
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()
	c.observe(operation, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", operation, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(body, resp.StatusCode)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}

func (c *Client) observe(operation string, status int, start time.Time) {
	if c.observer != nil {
		c.observer(operation, status, time.Since(start))
	}
}

// escapePath escapes each segment of an object path, keeping the slashes.
func escapePath(p string) string {
	segments := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
