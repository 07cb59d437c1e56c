package dataverse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func staticSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(server.URL, staticSource("test-token"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestODataHeaders(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		fmt.Fprint(w, `{"UserId": "u-1", "BusinessUnitId": "bu-1", "OrganizationId": "org-1"}`)
	})

	who, err := client.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}

	if captured.URL.Path != apiPath+"/WhoAmI" {
		t.Errorf("request path %q, want %q", captured.URL.Path, apiPath+"/WhoAmI")
	}
	if got := captured.Header.Get("OData-MaxVersion"); got != "4.0" {
		t.Errorf("OData-MaxVersion = %q, want 4.0", got)
	}
	if got := captured.Header.Get("OData-Version"); got != "4.0" {
		t.Errorf("OData-Version = %q, want 4.0", got)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if who.UserID != "u-1" || who.BusinessUnitID != "bu-1" {
		t.Errorf("unexpected WhoAmI response: %+v", who)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"code": "0x80060888", "message": "invalid filter"}}`)
	})

	_, err := client.ListSolutions(context.Background(), "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T (%v), want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, want 400", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Error(), "invalid filter") {
		t.Errorf("error %q does not carry the response body", apiErr.Error())
	}
}

func TestCreateUserRecoversIDFromEntityHeader(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("Prefer = %q, want return=representation", got)
		}
		w.Header().Set("OData-EntityId",
			"https://org.example.test/api/data/v9.2/systemusers(11111111-2222-3333-4444-555555555555)")
		w.WriteHeader(http.StatusNoContent)
	})

	user, err := client.CreateApplicationUser(context.Background(), "app-guid", "bu-guid")
	if err != nil {
		t.Fatalf("CreateApplicationUser failed: %v", err)
	}
	if user.ID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("user ID %q, want GUID from OData-EntityId header", user.ID)
	}
	if !strings.Contains(string(body), `"businessunitid@odata.bind":"/businessunits(bu-guid)"`) {
		t.Errorf("request body %s lacks business unit bind", body)
	}
}

func TestResolveSolutionID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("$filter"); got != "uniquename eq 'MySolution'" {
			t.Errorf("$filter = %q, want unique name filter", got)
		}
		fmt.Fprint(w, `{"value": [{"solutionid": "sol-guid", "uniquename": "MySolution"}]}`)
	})

	id, err := client.ResolveSolutionID(context.Background(), "MySolution")
	if err != nil {
		t.Fatalf("ResolveSolutionID failed: %v", err)
	}
	if id != "sol-guid" {
		t.Errorf("solution ID %q, want sol-guid", id)
	}
}

func TestResolveSolutionIDNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": []}`)
	})

	if _, err := client.ResolveSolutionID(context.Background(), "Missing"); err == nil {
		t.Fatal("ResolveSolutionID succeeded for an unknown solution")
	}
}

func TestListSolutionFlows(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/solutioncomponents"):
			fmt.Fprint(w, `{"value": [
				{"solutioncomponentid": "c-1", "objectid": "wf-1", "componenttype": 29},
				{"solutioncomponentid": "c-2", "objectid": "wf-2", "componenttype": 29}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/workflows"):
			filter := r.URL.Query().Get("$filter")
			if !strings.Contains(filter, "category eq 5") {
				t.Errorf("$filter = %q, want modern flow category", filter)
			}
			if !strings.Contains(filter, "workflowid eq wf-1") || !strings.Contains(filter, "workflowid eq wf-2") {
				t.Errorf("$filter = %q, want both workflow IDs", filter)
			}
			fmt.Fprint(w, `{"value": [{"workflowid": "wf-1", "name": "Daily sync", "statecode": 1}]}`)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	})

	flows, err := client.ListSolutionFlows(context.Background(), "sol-guid")
	if err != nil {
		t.Fatalf("ListSolutionFlows failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("made %d requests, want 2", len(paths))
	}
	if len(flows) != 1 || flows[0].Name != "Daily sync" {
		t.Fatalf("flows = %+v, want the one activated flow", flows)
	}
	if flows[0].State() != "Activated" {
		t.Errorf("state %q, want Activated", flows[0].State())
	}
}

func TestAssignRoleBody(t *testing.T) {
	var captured *http.Request
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.AssignRole(context.Background(), "user-guid", "role-guid"); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}

	if captured.Method != http.MethodPost {
		t.Errorf("method %s, want POST", captured.Method)
	}
	if !strings.HasSuffix(captured.URL.Path, "/systemusers(user-guid)/systemuserroles_association/$ref") {
		t.Errorf("path %q, want $ref association", captured.URL.Path)
	}
	if !strings.Contains(string(body), "roles(role-guid)") {
		t.Errorf("body %s lacks the role reference", body)
	}
}

func TestFindUserByEmail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("$filter"); got != "internalemailaddress eq 'jo@contoso.com'" {
			t.Errorf("$filter = %q, want email filter", got)
		}
		fmt.Fprint(w, `{"value": [
			{"systemuserid": "u-guid", "fullname": "Jo", "internalemailaddress": "jo@contoso.com"}
		]}`)
	})

	user, err := client.FindUserByEmail(context.Background(), "jo@contoso.com")
	if err != nil {
		t.Fatalf("FindUserByEmail failed: %v", err)
	}
	if user.ID != "u-guid" {
		t.Errorf("user ID %q, want u-guid", user.ID)
	}
	if user.Email != "jo@contoso.com" {
		t.Errorf("email %q, want jo@contoso.com", user.Email)
	}
}

func TestFindUserByEmailNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": []}`)
	})

	if _, err := client.FindUserByEmail(context.Background(), "ghost@contoso.com"); err == nil {
		t.Fatal("FindUserByEmail succeeded for an unknown address")
	}
}

func TestComponentTypeNames(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{29, "Workflow"},
		{371, "Connector"},
		{9999, "Type 9999"},
	}
	for _, tt := range tests {
		got := SolutionComponent{ComponentType: tt.code}.TypeName()
		if got != tt.want {
			t.Errorf("TypeName(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestEntityIDFromHeader(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"https://org.example.test/api/data/v9.2/systemusers(abc)", "abc"},
		{"", ""},
		{"no parens here", ""},
	}
	for _, tt := range tests {
		if got := entityIDFromHeader(tt.value); got != tt.want {
			t.Errorf("entityIDFromHeader(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
