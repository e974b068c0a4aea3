package gateway

import (
	"context"
	"net/http"

	"github.com/aechclawbot/opsdash/internal/workitem"
)

// CreateFeatureRequest is the payload for filing a feature request.
type CreateFeatureRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// ListFeatures fetches the feature-request collection.
func (c *Client) ListFeatures(ctx context.Context) ([]workitem.Feature, error) {
	var features []workitem.Feature
	if err := c.list(ctx, "/features", "features", &features); err != nil {
		return nil, err
	}
	return features, nil
}

// CreateFeature files a feature request and returns the server's record.
func (c *Client) CreateFeature(ctx context.Context, req CreateFeatureRequest) (*workitem.Feature, error) {
	var feature workitem.Feature
	if err := c.do(ctx, http.MethodPost, "/features", req, &feature); err != nil {
		return nil, err
	}
	return &feature, nil
}

// UpdateFeature replaces mutable feature fields.
func (c *Client) UpdateFeature(ctx context.Context, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPut, "/features/"+id, fields, nil)
}

// PlanFeature asks the gateway to start generating an execution plan.
func (c *Client) PlanFeature(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/features/"+id+"/plan", nil, nil)
}

// ApproveFeature approves a planned feature.
func (c *Client) ApproveFeature(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/features/"+id+"/approve", nil, nil)
}

// RejectFeature rejects the plan, returning the feature to requested.
// Features have no hard delete; rejection is the delete surrogate.
func (c *Client) RejectFeature(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/features/"+id+"/reject", nil, nil)
}

// CompleteFeature marks a tested feature complete.
func (c *Client) CompleteFeature(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/features/"+id+"/complete", nil, nil)
}

// ReportFeatureIssues sends the feature back to building with issue notes.
func (c *Client) ReportFeatureIssues(ctx context.Context, id, issues string) error {
	return c.do(ctx, http.MethodPut, "/features/"+id+"/issues", map[string]string{"issues": issues}, nil)
}

// ExecuteFeature starts building an approved feature.
func (c *Client) ExecuteFeature(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/features/"+id+"/execute", nil, nil)
}

// FeatureProgress polls planning and execution; the gateway reports both
// phases through the same endpoint.
func (c *Client) FeatureProgress(ctx context.Context, id string) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, http.MethodGet, "/features/"+id+"/progress", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
