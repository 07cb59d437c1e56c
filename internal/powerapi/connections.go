package powerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Connection is an authenticated instance of a connector.
type Connection struct {
	Name       string               `json:"name"`
	ID         string               `json:"id,omitempty"`
	Properties ConnectionProperties `json:"properties"`

	Raw json.RawMessage `json:"-"`
}

// ConnectionProperties are the connection fields the CLI reads.
type ConnectionProperties struct {
	DisplayName string             `json:"displayName"`
	APIID       string             `json:"apiId,omitempty"`
	CreatedTime time.Time          `json:"createdTime,omitzero"`
	Statuses    []ConnectionStatus `json:"statuses,omitempty"`
}

// ConnectionStatus is one entry of a connection's status list.
type ConnectionStatus struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// Status returns the connection's first reported status, or empty.
func (c *Connection) Status() string {
	if len(c.Properties.Statuses) == 0 {
		return ""
	}
	return c.Properties.Statuses[0].Status
}

// ListConnections returns connections in the environment, optionally limited
// to one connector.
func (c *Client) ListConnections(ctx context.Context, connectorID string) ([]Connection, error) {
	filter := c.environmentFilter()
	if connectorID != "" {
		filter += fmt.Sprintf(" and apiId eq '%s'", connectorID)
	}

	query := url.Values{}
	query.Set("$filter", filter)

	data, err := c.get(ctx, c.connectorURL("connections"), query)
	if err != nil {
		return nil, err
	}
	connections, _, err := decodeList[Connection](data)
	return connections, err
}

// GetConnection returns one connection by name.
func (c *Client) GetConnection(ctx context.Context, connectionID string) (*Connection, error) {
	query := url.Values{}
	query.Set("$filter", c.environmentFilter())

	data, err := c.get(ctx, c.connectorURL("connections", connectionID), query)
	if err != nil {
		return nil, err
	}

	var connection Connection
	if err := json.Unmarshal(data, &connection); err != nil {
		return nil, fmt.Errorf("decoding connection: %w", err)
	}
	connection.Raw = data
	return &connection, nil
}

// CreateConnection creates a connection shell for a connector. The service
// names connections by GUID; credentials are supplied afterwards through the
// portal's consent dialog ("Fix connection").
func (c *Client) CreateConnection(ctx context.Context, connectorID, displayName string) (*Connection, error) {
	connectionID := uuid.NewString()

	body := map[string]any{
		"properties": map[string]any{
			"displayName": displayName,
			"environment": map[string]any{
				"id":   "/providers/Microsoft.PowerApps/environments/" + c.environmentID,
				"name": c.environmentID,
			},
		},
	}

	data, err := c.put(ctx, c.connectorURL("apis", connectorID, "connections", connectionID), nil, body)
	if err != nil {
		return nil, err
	}

	var connection Connection
	if err := json.Unmarshal(data, &connection); err != nil {
		return nil, fmt.Errorf("decoding created connection: %w", err)
	}
	connection.Raw = data
	return &connection, nil
}

// UpdateConnection patches properties of a connection (e.g. its display name).
func (c *Client) UpdateConnection(ctx context.Context, connectionID string, properties map[string]any) (*Connection, error) {
	query := url.Values{}
	query.Set("$filter", c.environmentFilter())

	data, err := c.patch(ctx, c.connectorURL("connections", connectionID), query, map[string]any{"properties": properties})
	if err != nil {
		return nil, err
	}

	var connection Connection
	if err := json.Unmarshal(data, &connection); err != nil {
		return nil, fmt.Errorf("decoding updated connection: %w", err)
	}
	connection.Raw = data
	return &connection, nil
}

// DeleteConnection removes a connection.
func (c *Client) DeleteConnection(ctx context.Context, connectionID string) error {
	query := url.Values{}
	query.Set("$filter", c.environmentFilter())
	_, err := c.do(ctx, http.MethodDelete, c.connectorURL("connections", connectionID), query, nil)
	return err
}

// TestResult is the outcome of a connection test.
type TestResult struct {
	Statuses []ConnectionStatus `json:"statuses"`

	Raw json.RawMessage `json:"-"`
}

// OK reports whether every status is Connected.
func (t *TestResult) OK() bool {
	if len(t.Statuses) == 0 {
		return false
	}
	for _, s := range t.Statuses {
		if s.Status != "Connected" {
			return false
		}
	}
	return true
}

// TestConnection asks the service to verify the connection's credentials.
func (c *Client) TestConnection(ctx context.Context, connectionID string) (*TestResult, error) {
	data, err := c.post(ctx, c.connectorURL("connections", connectionID, "testConnection"), nil, map[string]any{})
	if err != nil {
		return nil, err
	}

	result := &TestResult{Raw: data}
	// Some connectors return 200 with an empty body on success.
	if len(data) > 0 {
		var payload struct {
			Statuses []ConnectionStatus `json:"statuses"`
			Properties struct {
				Statuses []ConnectionStatus `json:"statuses"`
			} `json:"properties"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decoding test result: %w", err)
		}
		result.Statuses = payload.Statuses
		if len(result.Statuses) == 0 {
			result.Statuses = payload.Properties.Statuses
		}
	}
	if len(result.Statuses) == 0 {
		result.Statuses = []ConnectionStatus{{Status: "Connected"}}
	}
	return result, nil
}

// RefreshConnection forces the service to refresh the connection's tokens.
func (c *Client) RefreshConnection(ctx context.Context, connectionID string) (*Connection, error) {
	data, err := c.post(ctx, c.connectorURL("connections", connectionID, "refresh"), nil, map[string]any{})
	if err != nil {
		return nil, err
	}

	connection := &Connection{Raw: data}
	if len(data) > 0 {
		if err := json.Unmarshal(data, connection); err != nil {
			return nil, fmt.Errorf("decoding refreshed connection: %w", err)
		}
	}
	return connection, nil
}
