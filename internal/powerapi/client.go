// Package powerapi is a client for the Power Automate Management API
// (api.flow.microsoft.com) and the Power Apps connector/connection API
// (api.powerapps.com). Flows live under an environment-scoped path of the
// Management API, which registers them with resource IDs so they appear in
// the Power Automate portal; connectors and connections live under the
// Power Apps provider with an environment filter.
package powerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Default API endpoints.
const (
	DefaultFlowBaseURL = "https://api.flow.microsoft.com"
	DefaultAppsBaseURL = "https://api.powerapps.com"

	apiVersion = "2016-11-01"
)

// APIError is a non-2xx response from the service, surfaced verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the Power Automate and Power Apps APIs for one environment.
type Client struct {
	flowBase      *url.URL
	appsBase      *url.URL
	environmentID string
	httpClient    *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURLs overrides the service endpoints, e.g. to point at a test server.
func WithBaseURLs(flowBaseURL, appsBaseURL string) Option {
	return func(c *Client) error {
		flow, err := url.Parse(flowBaseURL)
		if err != nil {
			return fmt.Errorf("invalid flow base URL: %w", err)
		}
		apps, err := url.Parse(appsBaseURL)
		if err != nil {
			return fmt.Errorf("invalid apps base URL: %w", err)
		}
		c.flowBase = flow
		c.appsBase = apps
		return nil
	}
}

// WithTransport sets a custom base transport underneath the OAuth transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient.Transport.(*oauth2.Transport).Base = transport
		return nil
	}
}

// New creates a Client authenticating every request through source.
func New(environmentID string, source oauth2.TokenSource, opts ...Option) (*Client, error) {
	if environmentID == "" {
		return nil, fmt.Errorf("missing environment ID")
	}
	if source == nil {
		return nil, fmt.Errorf("missing token source")
	}

	flowBase, _ := url.Parse(DefaultFlowBaseURL)
	appsBase, _ := url.Parse(DefaultAppsBaseURL)

	c := &Client{
		flowBase:      flowBase,
		appsBase:      appsBase,
		environmentID: environmentID,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: source},
		},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// EnvironmentID returns the environment this client is scoped to.
func (c *Client) EnvironmentID() string {
	return c.environmentID
}

// environmentURL builds a Management API URL scoped to the environment.
func (c *Client) environmentURL(parts ...string) string {
	u := *c.flowBase
	u.Path = strings.Join(append([]string{
		u.Path, "providers/Microsoft.ProcessSimple/environments", c.environmentID,
	}, parts...), "/")
	return u.String()
}

// connectorURL builds a Power Apps API URL under the PowerApps provider.
func (c *Client) connectorURL(parts ...string) string {
	u := *c.appsBase
	u.Path = strings.Join(append([]string{u.Path, "providers/Microsoft.PowerApps"}, parts...), "/")
	return u.String()
}

// environmentFilter is the OData filter scoping Power Apps API collections.
func (c *Client) environmentFilter() string {
	return fmt.Sprintf("environment eq '%s'", c.environmentID)
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body any) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("api-version") == "" {
		query.Set("api-version", apiVersion)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL+"?"+query.Encode(), reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ms-client-scope", "full")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return data, nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, query, nil)
}

func (c *Client) post(ctx context.Context, rawURL string, query url.Values, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, query, body)
}

func (c *Client) put(ctx context.Context, rawURL string, query url.Values, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, rawURL, query, body)
}

func (c *Client) patch(ctx context.Context, rawURL string, query url.Values, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPatch, rawURL, query, body)
}

func (c *Client) delete(ctx context.Context, rawURL string) error {
	_, err := c.do(ctx, http.MethodDelete, rawURL, nil, nil)
	return err
}

// collection is the service's list envelope.
type collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"nextLink"`
}

func decodeList[T any](data []byte) ([]T, string, error) {
	var col collection[T]
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, "", fmt.Errorf("decoding list response: %w", err)
	}
	return col.Value, col.NextLink, nil
}
