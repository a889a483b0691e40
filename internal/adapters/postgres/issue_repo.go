package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/pkg/geospatial"
)

const issueColumns = `id, gps_date_stamp, classification, location, latitude, longitude,
	image_key, filename, created_at`

// IssueRepo implements ports.IssueRepository with pgx.
type IssueRepo struct {
	db *DB
}

// NewIssueRepo creates a new IssueRepo.
func NewIssueRepo(db *DB) *IssueRepo {
	return &IssueRepo{db: db}
}

// Insert stores a new issue and fills in its ID and CreatedAt.
func (r *IssueRepo) Insert(ctx context.Context, issue *domain.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}

	var lat, lon *float64
	if issue.Point != nil {
		lat, lon = &issue.Point.Lat, &issue.Point.Lon
	}

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO issues (id, gps_date_stamp, classification, location, latitude, longitude, image_key, filename)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, issue.ID, issue.GPSDateStamp, issue.Classification, issue.Location,
		lat, lon, issue.ImageKey, issue.Filename,
	).Scan(&issue.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// GetByID returns an issue by id.
func (r *IssueRepo) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.db.Pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	return scanIssue(row)
}

// GetByIDs returns the issues with the given ids, newest first.
func (r *IssueRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Issue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+issueColumns+` FROM issues
		WHERE id = ANY($1)
		ORDER BY created_at DESC
	`, ids)
	if err != nil {
		return nil, err
	}
	return collectIssues(rows)
}

// Latest returns the most recently stored issue.
func (r *IssueRepo) Latest(ctx context.Context) (*domain.Issue, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+issueColumns+` FROM issues
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	return scanIssue(row)
}

// List returns one page of issues, newest first, and the total count.
func (r *IssueRepo) List(ctx context.Context, offset, limit int) ([]domain.Issue, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM issues`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+issueColumns+` FROM issues
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	issues, err := collectIssues(rows)
	return issues, total, err
}

// ListLocated returns every issue with coordinates.
func (r *IssueRepo) ListLocated(ctx context.Context) ([]domain.Issue, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+issueColumns+` FROM issues
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	return collectIssues(rows)
}

// FindNearby returns issues within radiusMeters of (lat, lon), closest
// first. The bounding box query uses the (latitude, longitude) index; the
// exact distance is computed here.
func (r *IssueRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Issue, error) {
	center := domain.GeoPoint{Lat: lat, Lon: lon}
	where, args := boxFilter(geospatial.BoundingBox(center, radiusMeters))

	rows, err := r.db.Pool.Query(ctx, `SELECT `+issueColumns+` FROM issues WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	candidates, err := collectIssues(rows)
	if err != nil {
		return nil, err
	}

	issues := make([]domain.Issue, 0, len(candidates))
	for _, is := range candidates {
		d := geospatial.Distance(center, *is.Point)
		if d > radiusMeters {
			continue
		}
		is.Distance = &d
		issues = append(issues, is)
	}
	sort.Slice(issues, func(i, j int) bool { return *issues[i].Distance < *issues[j].Distance })
	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	return issues, nil
}

// boxFilter ORs one BETWEEN pair per box.
func boxFilter(boxes []domain.Bounds) (string, []any) {
	clauses := make([]string, 0, len(boxes))
	args := make([]any, 0, 4*len(boxes))
	for _, b := range boxes {
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(latitude BETWEEN $%d AND $%d AND longitude BETWEEN $%d AND $%d)",
			n+1, n+2, n+3, n+4))
		args = append(args, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	}
	return strings.Join(clauses, " OR "), args
}

// UpdateClassification sets or clears the label of an issue.
func (r *IssueRepo) UpdateClassification(ctx context.Context, id string, label *string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE issues SET classification = $2 WHERE id = $1`, id, label)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var (
		is       domain.Issue
		lat, lon *float64
	)
	err := row.Scan(
		&is.ID, &is.GPSDateStamp, &is.Classification, &is.Location,
		&lat, &lon, &is.ImageKey, &is.Filename, &is.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if lat != nil && lon != nil {
		is.Point = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	return &is, nil
}

func collectIssues(rows pgx.Rows) ([]domain.Issue, error) {
	defer rows.Close()

	var issues []domain.Issue
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *is)
	}
	return issues, rows.Err()
}
