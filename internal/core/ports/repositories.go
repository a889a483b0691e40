package ports

import (
	"context"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// IssueRepository persists analysed photos.
type IssueRepository interface {
	// Insert stores issue and fills in its ID and CreatedAt.
	Insert(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Issue, error)
	Latest(ctx context.Context) (*domain.Issue, error)
	// List returns a page ordered newest first along with the total row count.
	List(ctx context.Context, offset, limit int) ([]domain.Issue, int, error)
	// ListLocated returns every issue that has coordinates.
	ListLocated(ctx context.Context) ([]domain.Issue, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Issue, error)
	UpdateClassification(ctx context.Context, id string, label *string) error
}
