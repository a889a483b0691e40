package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/pkg/logging"
	"github.com/samirrijal/civiclens/internal/pkg/metrics"
	"github.com/samirrijal/civiclens/internal/pkg/telemetry"
)

// WorkflowStarter is the part of client.Client the Starter needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Starter turns "issue created without a label" events into
// ReclassifyWorkflow runs.
type Starter struct {
	Client    WorkflowStarter
	TaskQueue string
}

// HandleUnclassified starts ReclassifyWorkflow for issue. Issues without an
// archived image, and issues labelled since the event, are skipped. A run
// that already exists for the issue counts as started.
func (s *Starter) HandleUnclassified(ctx context.Context, issue *domain.Issue) error {
	if issue.Classification != nil || issue.ImageKey == "" {
		metrics.Reclassifications.WithLabelValues("skipped").Inc()
		return nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanReclassify)
	span.SetAttributes(attribute.String("issue.id", issue.ID))
	defer span.End()

	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID(issue.ID),
		TaskQueue:             s.TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	run, err := s.Client.ExecuteWorkflow(ctx, opts, ReclassifyWorkflow, ReclassifyInput{
		IssueID:  issue.ID,
		ImageKey: issue.ImageKey,
	})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		metrics.Reclassifications.WithLabelValues("duplicate").Inc()
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("start reclassify for %s: %w", issue.ID, err)
	}

	metrics.Reclassifications.WithLabelValues("started").Inc()
	logging.FromContext(ctx).Info("reclassification started", "issue_id", issue.ID, "run_id", run.GetRunID())
	return nil
}
