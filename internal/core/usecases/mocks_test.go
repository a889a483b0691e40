package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// --- Mock IssueRepository ---

type mockIssueRepo struct {
	insertFn     func(ctx context.Context, issue *domain.Issue) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Issue, error)
	getByIDsFn   func(ctx context.Context, ids []string) ([]domain.Issue, error)
	latestFn     func(ctx context.Context) (*domain.Issue, error)
	listFn       func(ctx context.Context, offset, limit int) ([]domain.Issue, int, error)
	locatedFn    func(ctx context.Context) ([]domain.Issue, error)
	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Issue, error)
	updateFn     func(ctx context.Context, id string, label *string) error
}

func (m *mockIssueRepo) Insert(ctx context.Context, issue *domain.Issue) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, issue)
	}
	issue.ID = "issue-1"
	return nil
}

func (m *mockIssueRepo) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockIssueRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Issue, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockIssueRepo) Latest(ctx context.Context) (*domain.Issue, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx)
	}
	return nil, domain.ErrNotFound
}

func (m *mockIssueRepo) List(ctx context.Context, offset, limit int) ([]domain.Issue, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockIssueRepo) ListLocated(ctx context.Context) ([]domain.Issue, error) {
	if m.locatedFn != nil {
		return m.locatedFn(ctx)
	}
	return nil, nil
}

func (m *mockIssueRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Issue, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

func (m *mockIssueRepo) UpdateClassification(ctx context.Context, id string, label *string) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, label)
	}
	return nil
}

// --- Mock Classifier ---

type mockClassifier struct {
	calls      int
	classifyFn func(ctx context.Context, image []byte) (*string, error)
}

func (m *mockClassifier) Name() string { return "mock" }

func (m *mockClassifier) Classify(ctx context.Context, image []byte) (*string, error) {
	m.calls++
	if m.classifyFn != nil {
		return m.classifyFn(ctx, image)
	}
	return nil, nil
}

// --- In-memory CacheService ---

var errMiss = errors.New("miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Recording collaborators ---

type mockArchive struct {
	putFn func(ctx context.Context, key string, data []byte, contentType string) error
	keys  []string
}

func (m *mockArchive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putFn != nil {
		if err := m.putFn(ctx, key, data, contentType); err != nil {
			return err
		}
	}
	m.keys = append(m.keys, key)
	return nil
}

func (m *mockArchive) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, domain.ErrNotFound
}

type recordingSink struct {
	records []domain.AnalysisRecord
	err     error
}

func (s *recordingSink) Write(_ context.Context, rec domain.AnalysisRecord) error {
	s.records = append(s.records, rec)
	return s.err
}

type recordingPublisher struct {
	created []*domain.Issue
	updated []*domain.Issue
	err     error
}

func (p *recordingPublisher) PublishIssueCreated(_ context.Context, issue *domain.Issue) error {
	p.created = append(p.created, issue)
	return p.err
}

func (p *recordingPublisher) PublishIssueUpdated(_ context.Context, issue *domain.Issue) error {
	p.updated = append(p.updated, issue)
	return p.err
}

type recordingIndex struct {
	points map[string]domain.GeoPoint
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{points: map[string]domain.GeoPoint{}}
}

func (x *recordingIndex) Insert(id string, p domain.GeoPoint) { x.points[id] = p }

func (x *recordingIndex) Search(boxes ...domain.Bounds) []string {
	var ids []string
	for id, p := range x.points {
		for _, b := range boxes {
			if p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

func (x *recordingIndex) Len() int { return len(x.points) }

func strPtr(s string) *string { return &s }
