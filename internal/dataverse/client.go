// Package dataverse is a client for the Microsoft Dataverse Web API. It
// covers the entities the CLI needs beyond the Power Automate Management
// API: solutions and their components, system users (including application
// users), and security roles.
package dataverse

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

// apiPath is the versioned Web API root under the organization URL.
const apiPath = "/api/data/v9.2"

// APIError is a non-2xx response from Dataverse, surfaced verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the Dataverse Web API of one organization.
type Client struct {
	base       *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithTransport sets a custom base transport underneath the OAuth transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient.Transport.(*oauth2.Transport).Base = transport
		return nil
	}
}

// New creates a Client for the organization at orgURL
// (e.g. https://org.crm.dynamics.com), authenticating through source.
func New(orgURL string, source oauth2.TokenSource, opts ...Option) (*Client, error) {
	if orgURL == "" {
		return nil, fmt.Errorf("missing organization URL")
	}
	if source == nil {
		return nil, fmt.Errorf("missing token source")
	}

	base, err := url.Parse(strings.TrimRight(orgURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid organization URL: %w", err)
	}

	c := &Client{
		base: base,
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

// BaseURL returns the organization URL the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) entityURL(parts ...string) string {
	u := *c.base
	u.Path = u.Path + apiPath + "/" + strings.Join(parts, "/")
	return u.String()
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body any, extraHeaders http.Header) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	full := rawURL
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range extraHeaders {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return data, resp.Header, nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	data, _, err := c.do(ctx, http.MethodGet, rawURL, query, nil, nil)
	return data, err
}

// post creates an entity and returns its representation. Dataverse answers
// 204 No Content unless return=representation is preferred; in that case the
// new entity's ID is recovered from the OData-EntityId header.
func (c *Client) post(ctx context.Context, rawURL string, body any) ([]byte, error) {
	headers := http.Header{}
	headers.Set("Prefer", "return=representation")

	data, respHeaders, err := c.do(ctx, http.MethodPost, rawURL, nil, body, headers)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		if id := entityIDFromHeader(respHeaders.Get("OData-EntityId")); id != "" {
			return json.Marshal(map[string]string{"id": id})
		}
		return []byte("{}"), nil
	}
	return data, nil
}

func (c *Client) patch(ctx context.Context, rawURL string, body any) ([]byte, error) {
	data, _, err := c.do(ctx, http.MethodPatch, rawURL, nil, body, nil)
	return data, err
}

func (c *Client) delete(ctx context.Context, rawURL string) error {
	_, _, err := c.do(ctx, http.MethodDelete, rawURL, nil, nil, nil)
	return err
}

// entityIDFromHeader extracts the GUID from an OData-EntityId header value,
// e.g. "https://org.crm.dynamics.com/api/data/v9.2/systemusers(<guid>)".
func entityIDFromHeader(value string) string {
	open := strings.LastIndex(value, "(")
	end := strings.LastIndex(value, ")")
	if open < 0 || end < open {
		return ""
	}
	return value[open+1 : end]
}

// collection is the OData list envelope.
type collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

func decodeList[T any](data []byte) ([]T, error) {
	var col collection[T]
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("decoding list response: %w", err)
	}
	return col.Value, nil
}

// WhoAmIResponse identifies the caller within the organization.
type WhoAmIResponse struct {
	UserID         string `json:"UserId"`
	BusinessUnitID string `json:"BusinessUnitId"`
	OrganizationID string `json:"OrganizationId"`
}

// WhoAmI returns the identity Dataverse resolved for the current token.
func (c *Client) WhoAmI(ctx context.Context) (*WhoAmIResponse, error) {
	data, err := c.get(ctx, c.entityURL("WhoAmI"), nil)
	if err != nil {
		return nil, err
	}

	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		return nil, fmt.Errorf("decoding WhoAmI response: %w", err)
	}
	return &who, nil
}
