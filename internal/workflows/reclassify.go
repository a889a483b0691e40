package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Activity names as registered on the worker.
const (
	ActivityClassifyStoredImage  = "ClassifyStoredImage"
	ActivityUpdateClassification = "UpdateClassification"
)

// ReclassifyInput is the input for ReclassifyWorkflow.
type ReclassifyInput struct {
	IssueID  string
	ImageKey string
}

// ReclassifyResult reports what the workflow found.
type ReclassifyResult struct {
	Label   string
	Updated bool
}

// WorkflowID is the ID the worker starts ReclassifyWorkflow under, so a
// redelivered event cannot start a second run for the same issue.
func WorkflowID(issueID string) string {
	return "reclassify-" + issueID
}

// ReclassifyWorkflow retries the vision model for an issue stored without a
// classification. The classifier activity backs off up to five attempts; a
// label, if any, is written back to the issue.
func ReclassifyWorkflow(ctx workflow.Context, input ReclassifyInput) (ReclassifyResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting reclassification", "issueID", input.IssueID, "imageKey", input.ImageKey)

	classifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        10 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        5 * time.Minute,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: []string{ErrTypeImageNotFound},
		},
	})

	var label string
	err := workflow.ExecuteActivity(classifyCtx, ActivityClassifyStoredImage, input.ImageKey).Get(ctx, &label)
	if err != nil {
		return ReclassifyResult{}, err
	}
	if label == "" {
		logger.Info("Model found no known label", "issueID", input.IssueID)
		return ReclassifyResult{}, nil
	}

	updateCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeIssueNotFound},
		},
	})
	if err := workflow.ExecuteActivity(updateCtx, ActivityUpdateClassification, input.IssueID, label).Get(ctx, nil); err != nil {
		return ReclassifyResult{Label: label}, err
	}

	logger.Info("Issue reclassified", "issueID", input.IssueID, "label", label)
	return ReclassifyResult{Label: label, Updated: true}, nil
}
