package powerapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

const testEnvironment = "Default-11111111-2222-3333-4444-555555555555"

func staticSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// newTestClient points both API bases at one test server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(testEnvironment, staticSource("test-token"),
		WithBaseURLs(server.URL, server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestListFlowsRequest(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		fmt.Fprint(w, `{"value": [
			{"name": "flow-1", "properties": {"displayName": "First", "state": "Started"}},
			{"name": "flow-2", "properties": {"displayName": "Second", "state": "Stopped"}}
		]}`)
	})

	flows, err := client.ListFlows(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListFlows failed: %v", err)
	}

	wantPath := "/providers/Microsoft.ProcessSimple/environments/" + testEnvironment + "/flows"
	if captured.URL.Path != wantPath {
		t.Errorf("request path %q, want %q", captured.URL.Path, wantPath)
	}
	if got := captured.URL.Query().Get("$top"); got != "10" {
		t.Errorf("$top = %q, want 10", got)
	}
	if got := captured.URL.Query().Get("api-version"); got != apiVersion {
		t.Errorf("api-version = %q, want %q", got, apiVersion)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if got := captured.Header.Get("x-ms-client-scope"); got != "full" {
		t.Errorf("x-ms-client-scope = %q, want full", got)
	}

	if len(flows) != 2 {
		t.Fatalf("got %d flows, want 2", len(flows))
	}
	if flows[0].Properties.DisplayName != "First" {
		t.Errorf("first flow display name %q, want First", flows[0].Properties.DisplayName)
	}
}

func TestAPIErrorSurfacedVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": "AuthorizationFailed"}}`)
	})

	_, err := client.GetFlow(context.Background(), "flow-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T (%v), want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status %d, want 403", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Error(), "AuthorizationFailed") {
		t.Errorf("error %q does not carry the response body", apiErr.Error())
	}
}

func TestCreateFlowPayload(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"name": "new-flow", "properties": {"displayName": "My Flow", "state": "Stopped"}}`)
	})

	flow, err := client.CreateFlow(context.Background(), CreateFlowParams{
		DisplayName: "My Flow",
		Trigger:     TriggerHTTP,
		Description: "test flow",
	})
	if err != nil {
		t.Fatalf("CreateFlow failed: %v", err)
	}
	if flow.Name != "new-flow" {
		t.Errorf("created flow name %q, want new-flow", flow.Name)
	}

	var payload struct {
		Properties struct {
			DisplayName string         `json:"displayName"`
			State       string         `json:"state"`
			Description string         `json:"description"`
			Definition  map[string]any `json:"definition"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if payload.Properties.State != FlowStateStopped {
		t.Errorf("new flow state %q, want Stopped", payload.Properties.State)
	}
	if payload.Properties.Description != "test flow" {
		t.Errorf("description %q, want test flow", payload.Properties.Description)
	}
	triggers, ok := payload.Properties.Definition["triggers"].(map[string]any)
	if !ok {
		t.Fatal("definition has no triggers object")
	}
	manual, ok := triggers["manual"].(map[string]any)
	if !ok {
		t.Fatal("definition has no manual trigger")
	}
	if manual["kind"] != "Http" {
		t.Errorf("trigger kind %v, want Http", manual["kind"])
	}
}

func TestCreateFlowRejectsUnknownTrigger(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid trigger")
	})

	_, err := client.CreateFlow(context.Background(), CreateFlowParams{DisplayName: "x", Trigger: "webhook"})
	if err == nil {
		t.Fatal("CreateFlow accepted an unsupported trigger")
	}
}

func TestListRunsCapsTop(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		fmt.Fprint(w, `{"value": [], "nextLink": "https://example.test/next"}`)
	})

	_, next, err := client.ListRuns(context.Background(), "flow-1", RunsOptions{
		Top:    500,
		Filter: "status eq 'Failed'",
	})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}

	if got := captured.URL.Query().Get("$top"); got != "100" {
		t.Errorf("$top = %q, want capped at 100", got)
	}
	if got := captured.URL.Query().Get("$filter"); got != "status eq 'Failed'" {
		t.Errorf("$filter = %q, want status filter", got)
	}
	if next != "https://example.test/next" {
		t.Errorf("nextLink = %q, want pagination link", next)
	}
}

func TestListConnectorsFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("$filter"); !strings.Contains(got, testEnvironment) {
			t.Errorf("$filter = %q, want environment scope", got)
		}
		fmt.Fprint(w, `{"value": [
			{"name": "shared_office365", "properties": {"displayName": "Office 365", "publisher": "Microsoft", "tier": "Standard"}},
			{"name": "my_connector", "properties": {"displayName": "Podio Sync", "publisher": "Contoso", "isCustomApi": true}}
		]}`)
	})

	tests := []struct {
		name string
		opts ConnectorListOptions
		want []string
	}{
		{"all", ConnectorListOptions{}, []string{"shared_office365", "my_connector"}},
		{"custom only", ConnectorListOptions{CustomOnly: true}, []string{"my_connector"}},
		{"managed only", ConnectorListOptions{ManagedOnly: true}, []string{"shared_office365"}},
		{"text filter on name", ConnectorListOptions{FilterText: "podio"}, []string{"my_connector"}},
		{"text filter on publisher", ConnectorListOptions{FilterText: "microsoft"}, []string{"shared_office365"}},
		{"no match", ConnectorListOptions{FilterText: "sharepoint"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connectors, err := client.ListConnectors(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("ListConnectors failed: %v", err)
			}
			var got []string
			for _, c := range connectors {
				got = append(got, c.Name)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCreateConnectionUsesGUIDName(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		fmt.Fprint(w, `{"name": "ignored", "properties": {"displayName": "CRM"}}`)
	})

	if _, err := client.CreateConnection(context.Background(), "shared_podio", "CRM"); err != nil {
		t.Fatalf("CreateConnection failed: %v", err)
	}

	if captured.Method != http.MethodPut {
		t.Errorf("method %s, want PUT", captured.Method)
	}
	parts := strings.Split(strings.Trim(captured.URL.Path, "/"), "/")
	connectionID := parts[len(parts)-1]
	if len(connectionID) != 36 || strings.Count(connectionID, "-") != 4 {
		t.Errorf("connection name %q does not look like a GUID", connectionID)
	}
}

func TestConnectorIsCustom(t *testing.T) {
	tests := []struct {
		name      string
		connector Connector
		want      bool
	}{
		{"flagged custom", Connector{Properties: ConnectorProperties{IsCustomAPI: true}}, true},
		{"microsoft managed", Connector{Properties: ConnectorProperties{Publisher: "Microsoft"}}, false},
		{"third-party publisher", Connector{Properties: ConnectorProperties{Publisher: "Contoso"}}, true},
		{"no signal", Connector{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.connector.IsCustom(); got != tt.want {
				t.Errorf("IsCustom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTestConnectionStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties": {"statuses": [{"status": "Error", "error": {"code": "Unauthenticated"}}]}}`)
	})

	result, err := client.TestConnection(context.Background(), "conn-1")
	if err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
	if result.OK() {
		t.Error("test reported OK for an Error status")
	}
}
