package powerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Connector is a managed or custom connector (an "api" in the Power Apps API).
type Connector struct {
	Name       string              `json:"name"`
	ID         string              `json:"id,omitempty"`
	Type       string              `json:"type,omitempty"`
	Properties ConnectorProperties `json:"properties"`

	Raw json.RawMessage `json:"-"`
}

// ConnectorProperties are the connector fields the CLI reads.
type ConnectorProperties struct {
	DisplayName          string          `json:"displayName"`
	Description          string          `json:"description,omitempty"`
	Publisher            string          `json:"publisher,omitempty"`
	Tier                 string          `json:"tier,omitempty"`
	IsCustomAPI          bool            `json:"isCustomApi,omitempty"`
	CreatedTime          time.Time       `json:"createdTime,omitzero"`
	ChangedTime          time.Time       `json:"changedTime,omitzero"`
	APIDefinitions       *APIDefinitions `json:"apiDefinitions,omitempty"`
	ConnectionParameters json.RawMessage `json:"connectionParameters,omitempty"`
}

// APIDefinitions holds the connector's OpenAPI definition references.
type APIDefinitions struct {
	OriginalSwaggerURL string          `json:"originalSwaggerUrl,omitempty"`
	ModifiedSwaggerURL string          `json:"modifiedSwaggerUrl,omitempty"`
	Swagger            json.RawMessage `json:"swagger,omitempty"`
}

// IsCustom reports whether the connector is user-created. Managed connectors
// are published by Microsoft and cannot be modified or deleted.
func (c *Connector) IsCustom() bool {
	if c.Properties.IsCustomAPI {
		return true
	}
	// Custom connectors created before the isCustomApi flag carry no
	// publisher or a non-Microsoft one and live under the environment.
	return c.Properties.Publisher != "" && !strings.EqualFold(c.Properties.Publisher, "Microsoft")
}

// ConnectorListOptions filter the connector list.
type ConnectorListOptions struct {
	// FilterText matches case-insensitively on display name or publisher.
	FilterText string
	CustomOnly  bool
	ManagedOnly bool
}

// ListConnectors returns connectors available in the environment.
// FilterText, CustomOnly and ManagedOnly are applied client-side; the service
// filter only scopes to the environment.
func (c *Client) ListConnectors(ctx context.Context, opts ConnectorListOptions) ([]Connector, error) {
	query := url.Values{}
	query.Set("$filter", c.environmentFilter())

	data, err := c.get(ctx, c.connectorURL("apis"), query)
	if err != nil {
		return nil, err
	}

	connectors, _, err := decodeList[Connector](data)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(opts.FilterText)
	filtered := connectors[:0]
	for i := range connectors {
		conn := connectors[i]
		if opts.CustomOnly && !conn.IsCustom() {
			continue
		}
		if opts.ManagedOnly && conn.IsCustom() {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(conn.Properties.DisplayName), needle) &&
			!strings.Contains(strings.ToLower(conn.Properties.Publisher), needle) {
			continue
		}
		filtered = append(filtered, conn)
	}
	return filtered, nil
}

// GetConnector returns one connector. With operations set, the response
// includes the full swagger definition (and therefore every operation).
func (c *Client) GetConnector(ctx context.Context, connectorID string, operations bool) (*Connector, error) {
	query := url.Values{}
	query.Set("$filter", c.environmentFilter())
	if operations {
		query.Set("$expand", "swagger")
	}

	data, err := c.get(ctx, c.connectorURL("apis", connectorID), query)
	if err != nil {
		return nil, err
	}

	var connector Connector
	if err := json.Unmarshal(data, &connector); err != nil {
		return nil, fmt.Errorf("decoding connector: %w", err)
	}
	connector.Raw = data
	return &connector, nil
}

// GetConnectorPermissions returns the connector's permission assignments.
func (c *Client) GetConnectorPermissions(ctx context.Context, connectorID string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("$filter", c.environmentFilter())
	return c.get(ctx, c.connectorURL("apis", connectorID, "permissions"), query)
}

// CreateConnector creates a custom connector from a full definition document.
func (c *Client) CreateConnector(ctx context.Context, definition json.RawMessage) (*Connector, error) {
	query := url.Values{}
	query.Set("$filter", c.environmentFilter())

	data, err := c.post(ctx, c.connectorURL("apis"), query, definition)
	if err != nil {
		return nil, err
	}

	var connector Connector
	if err := json.Unmarshal(data, &connector); err != nil {
		return nil, fmt.Errorf("decoding created connector: %w", err)
	}
	connector.Raw = data
	return &connector, nil
}

// UpdateConnector patches a custom connector's definition. OAuth-backed
// connectors require the client secret to be re-supplied or the service
// rejects the update with 403.
func (c *Client) UpdateConnector(ctx context.Context, connectorID string, definition map[string]any, oauthSecret string) (*Connector, error) {
	if oauthSecret != "" {
		injectOAuthSecret(definition, oauthSecret)
	}

	query := url.Values{}
	query.Set("$filter", c.environmentFilter())

	data, err := c.patch(ctx, c.connectorURL("apis", connectorID), query, definition)
	if err != nil {
		return nil, err
	}

	var connector Connector
	if err := json.Unmarshal(data, &connector); err != nil {
		return nil, fmt.Errorf("decoding updated connector: %w", err)
	}
	connector.Raw = data
	return &connector, nil
}

// DeleteConnector removes a custom connector.
func (c *Client) DeleteConnector(ctx context.Context, connectorID string) error {
	return c.delete(ctx, c.connectorURL("apis", connectorID))
}

// injectOAuthSecret places the client secret into the definition's oauth
// connection parameters, the location the service expects it on update.
func injectOAuthSecret(definition map[string]any, secret string) {
	properties, ok := definition["properties"].(map[string]any)
	if !ok {
		return
	}
	params, ok := properties["connectionParameters"].(map[string]any)
	if !ok {
		return
	}
	token, ok := params["token"].(map[string]any)
	if !ok {
		return
	}
	settings, ok := token["oAuthSettings"].(map[string]any)
	if !ok {
		if settings, ok = token["oauthSettings"].(map[string]any); !ok {
			return
		}
	}
	settings["clientSecret"] = secret
}
