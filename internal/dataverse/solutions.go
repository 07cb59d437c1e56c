package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Solution is a Dataverse solution record.
type Solution struct {
	ID           string    `json:"solutionid"`
	UniqueName   string    `json:"uniquename"`
	FriendlyName string    `json:"friendlyname"`
	Version      string    `json:"version"`
	IsManaged    bool      `json:"ismanaged"`
	InstalledOn  time.Time `json:"installedon,omitzero"`

	Raw json.RawMessage `json:"-"`
}

// SolutionComponent is one entry of a solution's component list.
type SolutionComponent struct {
	ID            string `json:"solutioncomponentid"`
	ObjectID      string `json:"objectid"`
	ComponentType int    `json:"componenttype"`
}

// Component type codes the CLI recognizes. The full list is in the
// solutioncomponent entity reference; everything else displays numerically.
const (
	ComponentTypeEntity      = 1
	ComponentTypeWorkflow    = 29
	ComponentTypeWebResource = 61
	ComponentTypeCanvasApp   = 300
	ComponentTypeConnector   = 371
	ComponentTypeConnection  = 372
	ComponentTypeEnvVarDef   = 380
	ComponentTypeEnvVarValue = 381
)

var componentTypeNames = map[int]string{
	ComponentTypeEntity:      "Entity",
	ComponentTypeWorkflow:    "Workflow",
	ComponentTypeWebResource: "Web Resource",
	ComponentTypeCanvasApp:   "Canvas App",
	ComponentTypeConnector:   "Connector",
	ComponentTypeConnection:  "Connection",
	ComponentTypeEnvVarDef:   "Environment Variable Definition",
	ComponentTypeEnvVarValue: "Environment Variable Value",
}

// TypeName returns a readable name for the component type.
func (c SolutionComponent) TypeName() string {
	if name, ok := componentTypeNames[c.ComponentType]; ok {
		return name
	}
	return fmt.Sprintf("Type %d", c.ComponentType)
}

const solutionSelect = "solutionid,uniquename,friendlyname,version,ismanaged,installedon"

// ListSolutions returns solutions in the organization, optionally filtered by
// unique name.
func (c *Client) ListSolutions(ctx context.Context, uniqueName string) ([]Solution, error) {
	query := url.Values{}
	query.Set("$select", solutionSelect)
	query.Set("$orderby", "friendlyname asc")
	if uniqueName != "" {
		query.Set("$filter", fmt.Sprintf("uniquename eq '%s'", uniqueName))
	}

	data, err := c.get(ctx, c.entityURL("solutions"), query)
	if err != nil {
		return nil, err
	}
	return decodeList[Solution](data)
}

// GetSolution returns one solution by its GUID.
func (c *Client) GetSolution(ctx context.Context, solutionID string) (*Solution, error) {
	query := url.Values{}
	query.Set("$select", solutionSelect)

	data, err := c.get(ctx, c.entityURL(fmt.Sprintf("solutions(%s)", solutionID)), query)
	if err != nil {
		return nil, err
	}

	var solution Solution
	if err := json.Unmarshal(data, &solution); err != nil {
		return nil, fmt.Errorf("decoding solution: %w", err)
	}
	solution.Raw = data
	return &solution, nil
}

// ResolveSolutionID maps a solution's unique name to its GUID.
func (c *Client) ResolveSolutionID(ctx context.Context, uniqueName string) (string, error) {
	solutions, err := c.ListSolutions(ctx, uniqueName)
	if err != nil {
		return "", err
	}
	if len(solutions) == 0 {
		return "", fmt.Errorf("solution %q not found", uniqueName)
	}
	return solutions[0].ID, nil
}

// ListSolutionComponents returns the components of a solution, optionally
// limited to one component type.
func (c *Client) ListSolutionComponents(ctx context.Context, solutionID string, componentType int) ([]SolutionComponent, error) {
	filter := fmt.Sprintf("_solutionid_value eq %s", solutionID)
	if componentType > 0 {
		filter += fmt.Sprintf(" and componenttype eq %d", componentType)
	}

	query := url.Values{}
	query.Set("$select", "solutioncomponentid,objectid,componenttype")
	query.Set("$filter", filter)

	data, err := c.get(ctx, c.entityURL("solutioncomponents"), query)
	if err != nil {
		return nil, err
	}
	return decodeList[SolutionComponent](data)
}

// SolutionFlow is a modern (category 5) workflow row belonging to a solution.
type SolutionFlow struct {
	ID          string `json:"workflowid"`
	Name        string `json:"name"`
	StateCode   int    `json:"statecode"`
	Description string `json:"description"`
}

// State returns the workflow state as shown in the maker portal.
func (f SolutionFlow) State() string {
	switch f.StateCode {
	case 0:
		return "Draft"
	case 1:
		return "Activated"
	case 2:
		return "Suspended"
	default:
		return fmt.Sprintf("State %d", f.StateCode)
	}
}

// ListSolutionFlows returns the cloud flows inside a solution. Solution flows
// live in the workflow table with category 5 (modern flow); their workflow IDs
// come from the solution's component list.
func (c *Client) ListSolutionFlows(ctx context.Context, solutionID string) ([]SolutionFlow, error) {
	components, err := c.ListSolutionComponents(ctx, solutionID, ComponentTypeWorkflow)
	if err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, nil
	}

	filter := "category eq 5 and ("
	for i, comp := range components {
		if i > 0 {
			filter += " or "
		}
		filter += fmt.Sprintf("workflowid eq %s", comp.ObjectID)
	}
	filter += ")"

	query := url.Values{}
	query.Set("$select", "workflowid,name,statecode,description")
	query.Set("$filter", filter)

	data, err := c.get(ctx, c.entityURL("workflows"), query)
	if err != nil {
		return nil, err
	}
	return decodeList[SolutionFlow](data)
}
