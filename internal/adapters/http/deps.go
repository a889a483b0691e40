package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/civiclens/internal/adapters/filesink"
	"github.com/samirrijal/civiclens/internal/adapters/minio"
	"github.com/samirrijal/civiclens/internal/adapters/postgres"
	"github.com/samirrijal/civiclens/internal/adapters/valkey"
	"github.com/samirrijal/civiclens/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Analysis *usecases.AnalysisService
	Issues   *usecases.IssueService
	Sink     *filesink.Sink // serves the legacy /api/issue route
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
	Archive  *minio.Archive

	// AnalyzeTimeout bounds POST /v1/analyze. Zero means defaultAnalyzeTimeout.
	AnalyzeTimeout time.Duration
	// OpenAPIPath is served at /docs/openapi.yaml. Empty means api/openapi.yaml.
	OpenAPIPath string
	Version     string
}
