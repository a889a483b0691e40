package http

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/core/usecases"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// noOutputYet is returned by the "latest" routes before any issue exists.
var noOutputYet = fiber.Map{"message": "no output yet", "data": nil}

// AnalyzeHandler accepts a multipart image in the "file" field, runs the
// analysis pipeline and returns the stored issue.
func AnalyzeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		issue, err := analyzeUpload(c, deps)
		if err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(issue)
	}
}

// LegacyAnalyzeHandler serves POST /api/analyze: same pipeline, but the
// response is only the three-field record.
func LegacyAnalyzeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		issue, err := analyzeUpload(c, deps)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(issue.AnalysisRecord)
	}
}

func analyzeUpload(c *fiber.Ctx, deps *Dependencies) (*domain.Issue, error) {
	if deps.Analysis == nil {
		return nil, errors.New("analysis service not available")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		// A "file" part sent without a filename is parsed as a plain value.
		if form, ferr := c.MultipartForm(); ferr == nil && len(form.Value["file"]) > 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Empty filename")
		}
		return nil, fiber.NewError(fiber.StatusBadRequest, "No file provided")
	}

	// goexif only needs the bytes, but the resolver works on paths, so the
	// upload goes to a temp file that keeps its extension.
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	path, err := saveTemp(fh.Filename, src)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	return deps.Analysis.Analyze(c.UserContext(), usecases.Upload{
		Path:        path,
		Filename:    filepath.Base(fh.Filename),
		ContentType: fh.Header.Get(fiber.HeaderContentType),
	})
}

func saveTemp(filename string, src io.Reader) (string, error) {
	ext := filepath.Ext(filepath.Base(filename))
	if len(ext) > 10 {
		ext = ""
	}
	tmp, err := os.CreateTemp("", "civiclens-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// LatestIssueHandler returns the most recently stored issue.
func LatestIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Issues == nil {
			return errUnavailable(c, "issue store not available")
		}
		issue, err := deps.Issues.Latest(c.UserContext())
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(noOutputYet)
		}
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(issue)
	}
}

// LegacyIssueHandler serves GET /api/issue: the last record written to the
// file sink, or the latest stored issue's record when no sink is configured.
func LegacyIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		var (
			rec *domain.AnalysisRecord
			err error
		)
		switch {
		case deps.Sink != nil:
			rec, err = deps.Sink.Read(ctx)
		case deps.Issues != nil:
			var issue *domain.Issue
			if issue, err = deps.Issues.Latest(ctx); err == nil {
				rec = &issue.AnalysisRecord
			}
		default:
			err = domain.ErrNotFound
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(noOutputYet)
		}
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(rec)
	}
}

// ListIssuesHandler returns a page of issues, newest first.
func ListIssuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Issues == nil {
			return errUnavailable(c, "issue store not available")
		}
		pg := pageParams(c)

		issues, total, err := deps.Issues.List(c.UserContext(), pg.Offset, pg.Limit)
		if err != nil {
			return errFromService(c, err)
		}
		if issues == nil {
			issues = []domain.Issue{}
		}

		pg.Total = total
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: issues, Pagination: pg})
	}
}

// GetIssueHandler returns a single issue by ID.
func GetIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Issues == nil {
			return errUnavailable(c, "issue store not available")
		}
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "issue id is required")
		}

		issue, err := deps.Issues.GetByID(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(issue)
	}
}

// NearbyIssuesHandler returns issues within radius meters of lat/lon,
// closest first.
func NearbyIssuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Issues == nil {
			return errUnavailable(c, "issue store not available")
		}
		// 0 is a valid coordinate, so presence is checked on the raw query.
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			return errBadRequest(c, "lat and lon are required")
		}
		lon, err := strconv.ParseFloat(c.Query("lon"), 64)
		if err != nil {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius", 1000)
		if radius < 0 {
			return errBadRequest(c, "radius must be positive")
		}
		limit := c.QueryInt("limit", defaultPageLimit)

		issues, err := deps.Issues.FindNearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			return errFromService(c, err)
		}
		if issues == nil {
			issues = []domain.Issue{}
		}
		return c.JSON(issues)
	}
}
