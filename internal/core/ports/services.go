package ports

import (
	"context"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// Classifier labels a photo. A nil label with a nil error means the model
// found none of the known categories.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*string, error)
	Name() string
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishIssueCreated(ctx context.Context, issue *domain.Issue) error
	PublishIssueUpdated(ctx context.Context, issue *domain.Issue) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ImageArchive keeps the original uploads.
type ImageArchive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// RecordSink receives every assembled record.
type RecordSink interface {
	Write(ctx context.Context, rec domain.AnalysisRecord) error
}

// SpatialIndex answers radius queries over located issues in memory.
type SpatialIndex interface {
	Insert(id string, p domain.GeoPoint)
	Search(boxes ...domain.Bounds) []string
	Len() int
}
