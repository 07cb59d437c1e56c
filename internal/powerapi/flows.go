package powerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Flow is a cloud flow registered with the Management API.
type Flow struct {
	Name       string         `json:"name"`
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type,omitempty"`
	Properties FlowProperties `json:"properties"`

	// Raw preserves the service's full response for JSON output.
	Raw json.RawMessage `json:"-"`
}

// FlowProperties are the fields of a flow the CLI reads or writes.
type FlowProperties struct {
	DisplayName          string          `json:"displayName"`
	Description          string          `json:"description,omitempty"`
	State                string          `json:"state,omitempty"`
	CreatedTime          time.Time       `json:"createdTime,omitzero"`
	LastModifiedTime     time.Time       `json:"lastModifiedTime,omitzero"`
	Definition           json.RawMessage `json:"definition,omitempty"`
	ConnectionReferences json.RawMessage `json:"connectionReferences,omitempty"`
	SolutionID           string          `json:"solutionId,omitempty"`
}

// FlowRun is one execution of a flow. The last 28 days of history are retained
// by the service.
type FlowRun struct {
	Name       string            `json:"name"`
	ID         string            `json:"id,omitempty"`
	Properties FlowRunProperties `json:"properties"`

	Raw json.RawMessage `json:"-"`
}

// FlowRunProperties are the run fields the CLI displays.
type FlowRunProperties struct {
	Status    string    `json:"status"`
	StartTime time.Time `json:"startTime,omitzero"`
	EndTime   time.Time `json:"endTime,omitzero"`
	Trigger   struct {
		Name string `json:"name"`
	} `json:"trigger"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Flow states accepted by the service.
const (
	FlowStateStarted = "Started"
	FlowStateStopped = "Stopped"
)

// TriggerKind selects the scaffolded trigger for a new flow.
type TriggerKind string

const (
	TriggerHTTP   TriggerKind = "http"
	TriggerManual TriggerKind = "manual"
)

// CreateFlowParams describe a new flow.
type CreateFlowParams struct {
	DisplayName string
	Trigger     TriggerKind
	Description string
	SolutionID  string
}

// ListFlows returns up to top flows in the environment.
func (c *Client) ListFlows(ctx context.Context, top int) ([]Flow, error) {
	query := url.Values{}
	if top > 0 {
		query.Set("$top", strconv.Itoa(top))
	}

	data, err := c.get(ctx, c.environmentURL("flows"), query)
	if err != nil {
		return nil, err
	}
	flows, _, err := decodeList[Flow](data)
	return flows, err
}

// GetFlow returns one flow by its name (the flow ID, not the display name).
func (c *Client) GetFlow(ctx context.Context, flowID string) (*Flow, error) {
	data, err := c.get(ctx, c.environmentURL("flows", flowID), nil)
	if err != nil {
		return nil, err
	}

	var flow Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("decoding flow: %w", err)
	}
	flow.Raw = data
	return &flow, nil
}

// CreateFlow registers a new flow, scaffolding a workflow definition with the
// requested trigger. New flows start in the Stopped state.
func (c *Client) CreateFlow(ctx context.Context, params CreateFlowParams) (*Flow, error) {
	definition, err := buildFlowDefinition(params.Trigger)
	if err != nil {
		return nil, err
	}

	properties := map[string]any{
		"displayName":          params.DisplayName,
		"definition":           definition,
		"connectionReferences": map[string]any{},
		"state":                FlowStateStopped,
	}
	if params.Description != "" {
		properties["description"] = params.Description
	}
	if params.SolutionID != "" {
		properties["solutionId"] = params.SolutionID
	}

	data, err := c.post(ctx, c.environmentURL("flows"), nil, map[string]any{"properties": properties})
	if err != nil {
		return nil, err
	}

	var flow Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("decoding created flow: %w", err)
	}
	flow.Raw = data
	return &flow, nil
}

// UpdateFlow patches the given properties onto an existing flow.
func (c *Client) UpdateFlow(ctx context.Context, flowID string, properties map[string]any) error {
	if len(properties) == 0 {
		return fmt.Errorf("no update properties provided")
	}
	_, err := c.patch(ctx, c.environmentURL("flows", flowID), nil, map[string]any{"properties": properties})
	return err
}

// SetFlowState starts or stops a flow.
func (c *Client) SetFlowState(ctx context.Context, flowID, state string) error {
	return c.UpdateFlow(ctx, flowID, map[string]any{"state": state})
}

// DeleteFlow removes a flow.
func (c *Client) DeleteFlow(ctx context.Context, flowID string) error {
	return c.delete(ctx, c.environmentURL("flows", flowID))
}

// RunsOptions filter a flow's run history.
type RunsOptions struct {
	// Top caps the number of runs; the service returns at most 100 per request.
	Top int
	// Filter is a raw OData filter, e.g. "status eq 'Failed'".
	Filter string
}

// maxRunsPerPage is the service-side page cap for run history.
const maxRunsPerPage = 100

// ListRuns returns run history for a flow, newest first. The second return is
// the nextLink when more pages exist.
func (c *Client) ListRuns(ctx context.Context, flowID string, opts RunsOptions) ([]FlowRun, string, error) {
	top := opts.Top
	if top <= 0 || top > maxRunsPerPage {
		top = maxRunsPerPage
	}

	query := url.Values{}
	query.Set("$top", strconv.Itoa(top))
	if opts.Filter != "" {
		query.Set("$filter", opts.Filter)
	}

	data, err := c.get(ctx, c.environmentURL("flows", flowID, "runs"), query)
	if err != nil {
		return nil, "", err
	}
	return decodeList[FlowRun](data)
}

// GetRun returns one run of a flow.
func (c *Client) GetRun(ctx context.Context, flowID, runID string) (*FlowRun, error) {
	data, err := c.get(ctx, c.environmentURL("flows", flowID, "runs", runID), nil)
	if err != nil {
		return nil, err
	}

	var run FlowRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decoding run: %w", err)
	}
	run.Raw = data
	return &run, nil
}

// buildFlowDefinition scaffolds a Logic Apps workflow definition with a single
// trigger and no actions, matching what the portal produces for a blank flow.
func buildFlowDefinition(trigger TriggerKind) (map[string]any, error) {
	var kind string
	switch trigger {
	case TriggerHTTP, "":
		kind = "Http"
	case TriggerManual:
		kind = "Button"
	default:
		return nil, fmt.Errorf("unsupported trigger type: %s", trigger)
	}

	return map[string]any{
		"$schema":        "https://schema.management.azure.com/providers/Microsoft.Logic/schemas/2016-06-01/workflowdefinition.json#",
		"contentVersion": "1.0.0.0",
		"parameters": map[string]any{
			"$connections": map[string]any{
				"defaultValue": map[string]any{},
				"type":         "Object",
			},
			"$authentication": map[string]any{
				"defaultValue": map[string]any{},
				"type":         "SecureObject",
			},
		},
		"triggers": map[string]any{
			"manual": map[string]any{
				"type": "Request",
				"kind": kind,
				"inputs": map[string]any{
					"schema": map[string]any{
						"type":       "object",
						"properties": map[string]any{},
					},
				},
			},
		},
		"actions": map[string]any{},
		"outputs": map[string]any{},
	}, nil
}
