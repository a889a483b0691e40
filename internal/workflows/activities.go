package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/core/ports"
	"github.com/samirrijal/civiclens/internal/pkg/metrics"
)

// Error types that stop Temporal from retrying an activity.
const (
	ErrTypeImageNotFound = "ImageNotFound"
	ErrTypeIssueNotFound = "IssueNotFound"
)

// ImageClassifier labels raw image bytes and reports backend failures.
// *usecases.AnalysisService implements it.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, image []byte) (*string, error)
}

// ClassificationUpdater stores a new label for an issue.
// *usecases.IssueService implements it.
type ClassificationUpdater interface {
	UpdateClassification(ctx context.Context, id string, label *string) (*domain.Issue, error)
}

// ReclassifyActivities holds the activity implementations for ReclassifyWorkflow.
type ReclassifyActivities struct {
	Archive    ports.ImageArchive
	Classifier ImageClassifier
	Issues     ClassificationUpdater
}

// ClassifyStoredImage fetches an archived upload and classifies it. It
// returns "" when the model saw neither label. A classifier failure is
// returned as is so the retry policy applies.
func (a *ReclassifyActivities) ClassifyStoredImage(ctx context.Context, imageKey string) (string, error) {
	logger := activity.GetLogger(ctx)

	data, err := a.Archive.Get(ctx, imageKey)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.Reclassifications.WithLabelValues("missing_image").Inc()
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("image %s not in archive", imageKey), ErrTypeImageNotFound, err)
	}
	if err != nil {
		return "", fmt.Errorf("fetch image %s: %w", imageKey, err)
	}

	label, err := a.Classifier.ClassifyImage(ctx, data)
	if err != nil {
		logger.Warn("classification attempt failed", "imageKey", imageKey, "attempt", activity.GetInfo(ctx).Attempt, "error", err)
		return "", err
	}
	if label == nil {
		metrics.Reclassifications.WithLabelValues("no_match").Inc()
		return "", nil
	}
	return *label, nil
}

// UpdateClassification stores label on the issue and announces the change.
func (a *ReclassifyActivities) UpdateClassification(ctx context.Context, issueID, label string) error {
	_, err := a.Issues.UpdateClassification(ctx, issueID, &label)
	if errors.Is(err, domain.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("issue %s no longer exists", issueID), ErrTypeIssueNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("update issue %s: %w", issueID, err)
	}
	metrics.Reclassifications.WithLabelValues("classified").Inc()
	return nil
}
