package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/civiclens/internal/adapters/filesink"
	"github.com/samirrijal/civiclens/internal/adapters/http"
	"github.com/samirrijal/civiclens/internal/adapters/minio"
	natsadapter "github.com/samirrijal/civiclens/internal/adapters/nats"
	"github.com/samirrijal/civiclens/internal/adapters/postgres"
	"github.com/samirrijal/civiclens/internal/adapters/valkey"
	"github.com/samirrijal/civiclens/internal/adapters/vision"
	"github.com/samirrijal/civiclens/internal/core/location"
	"github.com/samirrijal/civiclens/internal/core/ports"
	"github.com/samirrijal/civiclens/internal/core/report"
	"github.com/samirrijal/civiclens/internal/core/usecases"
	"github.com/samirrijal/civiclens/internal/pkg/config"
	"github.com/samirrijal/civiclens/internal/pkg/geoindex"
	"github.com/samirrijal/civiclens/internal/pkg/logging"
	"github.com/samirrijal/civiclens/internal/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("civiclens-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	repo := postgres.NewIssueRepo(db)

	deps := &http.Dependencies{
		DB:             db,
		AnalyzeTimeout: cfg.Classifier.Timeout() + 15*time.Second,
		Version:        version,
	}
	var (
		analysisOpts []usecases.AnalysisOption
		issueCache   ports.CacheService
		events       ports.EventPublisher
	)

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		deps.Cache = cache
		issueCache = cache
		analysisOpts = append(analysisOpts, usecases.WithClassificationCache(cache, cfg.Classifier.CacheTTLSeconds))
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
		analysisOpts = append(analysisOpts, usecases.WithPublisher(pub))
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Object store
	if cfg.Storage.Enabled {
		archive, err := minio.New(ctx, cfg.Storage)
		if err != nil {
			slog.Warn("object store unavailable, uploads will not be archived", "error", err)
		} else {
			deps.Archive = archive
			analysisOpts = append(analysisOpts, usecases.WithArchive(archive))
		}
	}

	// File sink for the legacy /api/issue route
	if cfg.Sink.OutputPath != "" {
		sink := filesink.New(cfg.Sink.OutputPath)
		deps.Sink = sink
		analysisOpts = append(analysisOpts, usecases.WithSinks(sink))
	}

	// Vision model
	classifier, err := vision.New(cfg.Classifier)
	if err != nil {
		log.Fatalf("classifier: %v", err)
	}
	if classifier == nil {
		slog.Warn("no classifier configured, issues will be stored unclassified")
	}

	index := geoindex.New()
	analysisOpts = append(analysisOpts, usecases.WithRepository(repo), usecases.WithIndex(index))

	assembler := report.NewAssembler(location.NewResolver(slog.Default()))
	deps.Analysis = usecases.NewAnalysisService(assembler, classifier, analysisOpts...)
	deps.Issues = usecases.NewIssueService(repo, issueCache, index, events)

	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	n, err := deps.Issues.WarmIndex(warmCtx)
	warmCancel()
	if err != nil {
		slog.Warn("geo index warm-up failed, nearby queries fall back to the database", "error", err)
	} else {
		slog.Info("geo index loaded", "issues", n)
	}

	// Issues stored by other replicas reach the index through their events.
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "civiclens-api"); err != nil {
		slog.Warn("nats subscriber unavailable, geo index only sees local uploads", "error", err)
	} else {
		defer sub.Close()
		if err := sub.SubscribeCreated(ctx, deps.Issues.IndexIssue); err != nil {
			slog.Warn("subscribe to issue events failed", "error", err)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "CivicLens API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
