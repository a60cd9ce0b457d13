package depot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yosida95/uritemplate/v3"
)

const (
	defaultTimeout = 30 * time.Second

	// apiKeyHeader carries the run-as API key on every catalog request.
	apiKeyHeader = "apikey"

	// maxErrorBody bounds how much of a failed response is quoted in errors.
	maxErrorBody = 512
)

var resolveTemplate = uritemplate.MustNew("{+base}/api/v3/resolve{?address}")

// ClientConfig holds catalog service client configuration.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// HTTPClient overrides the default client. Redirects are never followed
	// regardless of the client's own policy.
	HTTPClient *http.Client
}

// Client implements Resolver against the depot service REST API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a new catalog service client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("depot service url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("depot service api key is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	}
	httpClient.CheckRedirect = func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{cfg: cfg, http: httpClient}, nil
}

// Name returns the resolver name.
func (*Client) Name() string {
	return "depot-service"
}

// resolveResponse is the envelope of /api/v3/resolve. The location fields sit
// in a nested object keyed by the depot type, so the body is decoded twice.
type resolveResponse struct {
	Type       string `json:"type"`
	Depot      string `json:"depot"`
	Collection string `json:"collection"`
	Dataset    string `json:"dataset"`
}

// Resolve looks up an address in the catalog service.
func (c *Client) Resolve(ctx context.Context, address string) (*Resolved, error) {
	endpoint, err := resolveTemplate.Expand(uritemplate.Values{
		"base":    uritemplate.String(c.cfg.BaseURL),
		"address": uritemplate.String(address),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: building url for %s: %w", ErrResolution, address, err)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolution, address, err)
	}

	resolved, err := decodeResolved(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolution, address, err)
	}
	resolved.Address = address
	return resolved, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling depot service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

func decodeResolved(body []byte) (*Resolved, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	var envelope resolveResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	resolved := &Resolved{
		Depot:      envelope.Depot,
		Type:       Type(envelope.Type),
		Collection: envelope.Collection,
		Dataset:    envelope.Dataset,
	}

	if nested, ok := raw[envelope.Type]; ok && envelope.Type != "" {
		if err := json.Unmarshal(nested, &resolved.Location); err != nil {
			return nil, fmt.Errorf("decoding %s location: %w", envelope.Type, err)
		}
	}
	return resolved, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Verify interface compliance.
var _ Resolver = (*Client)(nil)
