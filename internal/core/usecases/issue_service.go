package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/core/ports"
	"github.com/samirrijal/civiclens/internal/pkg/geospatial"
	"github.com/samirrijal/civiclens/internal/pkg/logging"
	"github.com/samirrijal/civiclens/internal/pkg/metrics"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultRadius   = 1000.0
	maxRadius       = 50000.0
	issueCacheTTL   = 600 // 10 min for a single issue
)

// IssueService handles reads and updates of stored issues.
type IssueService struct {
	issues ports.IssueRepository
	cache  ports.CacheService
	index  ports.SpatialIndex
	events ports.EventPublisher
}

// NewIssueService creates a new IssueService. cache, index and events may be nil.
func NewIssueService(issues ports.IssueRepository, cache ports.CacheService, index ports.SpatialIndex, events ports.EventPublisher) *IssueService {
	return &IssueService{issues: issues, cache: cache, index: index, events: events}
}

// Latest returns the most recent issue, or domain.ErrNotFound.
func (s *IssueService) Latest(ctx context.Context) (*domain.Issue, error) {
	return s.issues.Latest(ctx)
}

// GetByID returns a single issue.
func (s *IssueService) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	cacheKey := "issues:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var issue domain.Issue
			if err := json.Unmarshal(data, &issue); err == nil {
				metrics.CacheHits.WithLabelValues("issue").Inc()
				return &issue, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("issue").Inc()
	}

	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(issue); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, issueCacheTTL)
		}
	}
	return issue, nil
}

// List returns a page of issues, newest first, and the total count.
func (s *IssueService) List(ctx context.Context, offset, limit int) ([]domain.Issue, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.issues.List(ctx, offset, limit)
}

// FindNearby returns issues within radiusMeters of (lat, lon), closest first,
// each with Distance set.
func (s *IssueService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Issue, error) {
	if !geospatial.ValidPoint(lat, lon) {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	if radiusMeters <= 0 {
		radiusMeters = defaultRadius
	}
	if radiusMeters > maxRadius {
		radiusMeters = maxRadius
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	if s.index == nil || s.index.Len() == 0 {
		return s.issues.FindNearby(ctx, lat, lon, radiusMeters, limit)
	}

	center := domain.GeoPoint{Lat: lat, Lon: lon}
	ids := s.index.Search(geospatial.BoundingBox(center, radiusMeters)...)
	if len(ids) == 0 {
		return []domain.Issue{}, nil
	}
	candidates, err := s.issues.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Issue, 0, len(candidates))
	for _, is := range candidates {
		if is.Point == nil {
			continue
		}
		d := geospatial.Distance(center, *is.Point)
		if d > radiusMeters {
			continue
		}
		is.Distance = &d
		out = append(out, is)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateClassification stores a new label for an issue and announces it.
func (s *IssueService) UpdateClassification(ctx context.Context, id string, label *string) (*domain.Issue, error) {
	if err := s.issues.UpdateClassification(ctx, id, label); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "issues:id:"+id)
	}

	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.PublishIssueUpdated(ctx, issue); err != nil {
			logging.FromContext(ctx).Warn("publish issue update failed", "issue_id", id, "error", err)
		}
	}
	return issue, nil
}

// IndexIssue adds an issue stored elsewhere, typically by another API
// process, to the spatial index. Issues without a position are ignored.
func (s *IssueService) IndexIssue(_ context.Context, issue *domain.Issue) error {
	if s.index == nil || issue == nil || issue.Point == nil {
		return nil
	}
	if !geospatial.ValidPoint(issue.Point.Lat, issue.Point.Lon) {
		return fmt.Errorf("%w: issue %s has coordinates out of range", domain.ErrInvalidInput, issue.ID)
	}
	s.index.Insert(issue.ID, *issue.Point)
	return nil
}

// WarmIndex loads every located issue into the spatial index.
func (s *IssueService) WarmIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	issues, err := s.issues.ListLocated(ctx)
	if err != nil {
		return 0, fmt.Errorf("list located issues: %w", err)
	}
	for _, is := range issues {
		if is.Point != nil {
			s.index.Insert(is.ID, *is.Point)
		}
	}
	return len(issues), nil
}
