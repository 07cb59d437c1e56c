package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// SystemUser is a Dataverse user row. Application users carry the Entra
// application ID they represent.
type SystemUser struct {
	ID            string `json:"systemuserid"`
	FullName      string `json:"fullname"`
	DomainName    string `json:"domainname"`
	Email         string `json:"internalemailaddress"`
	ApplicationID string `json:"applicationid"`
	AzureADObject string `json:"azureactivedirectoryobjectid"`
	IsDisabled    bool   `json:"isdisabled"`

	Raw json.RawMessage `json:"-"`
}

// Role is a Dataverse security role.
type Role struct {
	ID   string `json:"roleid"`
	Name string `json:"name"`
}

const userSelect = "systemuserid,fullname,domainname,internalemailaddress,applicationid,azureactivedirectoryobjectid,isdisabled"

// ListApplicationUsers returns every application (non-interactive) user.
func (c *Client) ListApplicationUsers(ctx context.Context) ([]SystemUser, error) {
	query := url.Values{}
	query.Set("$select", userSelect)
	query.Set("$filter", "applicationid ne null")

	data, err := c.get(ctx, c.entityURL("systemusers"), query)
	if err != nil {
		return nil, err
	}
	return decodeList[SystemUser](data)
}

// GetUser returns one user by systemuserid.
func (c *Client) GetUser(ctx context.Context, userID string) (*SystemUser, error) {
	query := url.Values{}
	query.Set("$select", userSelect)

	data, err := c.get(ctx, c.entityURL(fmt.Sprintf("systemusers(%s)", userID)), query)
	if err != nil {
		return nil, err
	}

	var user SystemUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	user.Raw = data
	return &user, nil
}

// FindUserByAppID locates the application user for an Entra app registration.
func (c *Client) FindUserByAppID(ctx context.Context, applicationID string) (*SystemUser, error) {
	query := url.Values{}
	query.Set("$select", userSelect)
	query.Set("$filter", fmt.Sprintf("applicationid eq %s", applicationID))

	data, err := c.get(ctx, c.entityURL("systemusers"), query)
	if err != nil {
		return nil, err
	}

	users, err := decodeList[SystemUser](data)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no application user for app %s", applicationID)
	}
	return &users[0], nil
}

// FindUserByEmail locates a user by primary email address.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*SystemUser, error) {
	query := url.Values{}
	query.Set("$select", userSelect)
	query.Set("$filter", fmt.Sprintf("internalemailaddress eq '%s'", email))

	data, err := c.get(ctx, c.entityURL("systemusers"), query)
	if err != nil {
		return nil, err
	}

	users, err := decodeList[SystemUser](data)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return &users[0], nil
}

// CreateApplicationUser registers an Entra application as a Dataverse user in
// the given business unit and returns the created row.
func (c *Client) CreateApplicationUser(ctx context.Context, applicationID, businessUnitID string) (*SystemUser, error) {
	body := map[string]any{
		"applicationid":             applicationID,
		"businessunitid@odata.bind": fmt.Sprintf("/businessunits(%s)", businessUnitID),
	}

	data, err := c.post(ctx, c.entityURL("systemusers"), body)
	if err != nil {
		return nil, err
	}

	var user SystemUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decoding created user: %w", err)
	}
	// A 204 response only yields the new ID from the OData-EntityId header.
	if user.ID == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &created); err == nil {
			user.ID = created.ID
		}
	}
	user.Raw = data
	return &user, nil
}

// FindRoleByName resolves a security role by name within the organization.
func (c *Client) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	query := url.Values{}
	query.Set("$select", "roleid,name")
	query.Set("$filter", fmt.Sprintf("name eq '%s'", name))

	data, err := c.get(ctx, c.entityURL("roles"), query)
	if err != nil {
		return nil, err
	}

	roles, err := decodeList[Role](data)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("security role %q not found", name)
	}
	return &roles[0], nil
}

// ListUserRoles returns the security roles assigned to a user.
func (c *Client) ListUserRoles(ctx context.Context, userID string) ([]Role, error) {
	query := url.Values{}
	query.Set("$select", "roleid,name")

	data, err := c.get(ctx, c.entityURL(fmt.Sprintf("systemusers(%s)", userID), "systemuserroles_association"), query)
	if err != nil {
		return nil, err
	}
	return decodeList[Role](data)
}

// AssignRole associates a security role with a user.
func (c *Client) AssignRole(ctx context.Context, userID, roleID string) error {
	body := map[string]any{
		"@odata.id": c.entityURL(fmt.Sprintf("roles(%s)", roleID)),
	}

	_, _, err := c.do(ctx, http.MethodPost,
		c.entityURL(fmt.Sprintf("systemusers(%s)", userID), "systemuserroles_association", "$ref"),
		nil, body, nil)
	return err
}
