package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
)

// WorkflowHandoff starts the downstream analysis workflow for a finished index.
type WorkflowHandoff struct {
	client *executions.Client
	parent string
}

// NewWorkflowHandoff creates a hand-off targeting projects/{project}/locations/{location}/workflows/{workflow}.
func NewWorkflowHandoff(ctx context.Context, projectID, location, workflowID string) (*WorkflowHandoff, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("projectID, location and workflowID must all be set")
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &WorkflowHandoff{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}, nil
}

// Trigger starts one execution and returns its resource name.
func (h *WorkflowHandoff) Trigger(ctx context.Context, payload models.AnalysisHandoff) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: h.parent,
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := h.client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}

// Close releases the underlying client.
func (h *WorkflowHandoff) Close() error {
	return h.client.Close()
}
