package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/civiclens/internal/pkg/metrics"
)

const (
	requestTimeout        = 15 * time.Second
	defaultAnalyzeTimeout = 135 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health and readiness skip the request timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Analysis waits on the vision model, so it gets the classifier budget
	// on top of the regular request timeout.
	analyzeTimeout := deps.AnalyzeTimeout
	if analyzeTimeout <= 0 {
		analyzeTimeout = defaultAnalyzeTimeout
	}

	v1 := app.Group("/v1")
	v1.Post("/analyze", timeout.NewWithContext(AnalyzeHandler(deps), analyzeTimeout))
	v1.Get("/issues", timeout.NewWithContext(ListIssuesHandler(deps), requestTimeout))
	v1.Get("/issues/latest", timeout.NewWithContext(LatestIssueHandler(deps), requestTimeout))
	v1.Get("/issues/nearby", timeout.NewWithContext(NearbyIssuesHandler(deps), requestTimeout))
	v1.Get("/issues/:id", timeout.NewWithContext(GetIssueHandler(deps), requestTimeout))

	legacy := app.Group("/api", DeprecationMiddleware(legacyRoutes))
	legacy.Post("/analyze", timeout.NewWithContext(LegacyAnalyzeHandler(deps), analyzeTimeout))
	legacy.Get("/issue", timeout.NewWithContext(LegacyIssueHandler(deps), requestTimeout))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	openAPIPath := deps.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "api/openapi.yaml"
	}
	SetupDocs(app, openAPIPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if deps.NATS == nil {
			return errUnavailable(c, "live feed not available")
		}
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if deps.NATS != nil {
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}
