package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

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
	"github.com/samirrijal/civiclens/internal/pkg/logging"
	"github.com/samirrijal/civiclens/internal/pkg/telemetry"
	"github.com/samirrijal/civiclens/internal/workflows"
)

func main() {
	cfg, err := config.Load("civiclens-worker")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if !cfg.Temporal.Enabled {
		log.Fatal("temporal is disabled (set CIVICLENS_TEMPORAL_ENABLED=true)")
	}
	if !cfg.Storage.Enabled {
		log.Fatal("the worker reads archived uploads; enable storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	repo := postgres.NewIssueRepo(db)

	archive, err := minio.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}

	classifier, err := vision.New(cfg.Classifier)
	if err != nil {
		log.Fatalf("classifier: %v", err)
	}
	if classifier == nil {
		log.Fatal("no classifier configured, nothing to reclassify with")
	}

	var (
		analysisOpts []usecases.AnalysisOption
		issueCache   ports.CacheService
		events       ports.EventPublisher
	)
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		issueCache = cache
		analysisOpts = append(analysisOpts, usecases.WithClassificationCache(cache, cfg.Classifier.CacheTTLSeconds))
	}
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats publisher unavailable, updates will not be broadcast", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	assembler := report.NewAssembler(location.NewResolver(slog.Default()))
	analysis := usecases.NewAnalysisService(assembler, classifier, analysisOpts...)
	issues := usecases.NewIssueService(repo, issueCache, nil, events)

	// Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ReclassifyWorkflow)
	w.RegisterActivity(&workflows.ReclassifyActivities{
		Archive:    archive,
		Classifier: analysis,
		Issues:     issues,
	})

	// Unclassified issues arrive over JetStream and become workflow runs.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "civiclens-worker")
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()
	starter := &workflows.Starter{Client: c, TaskQueue: cfg.Temporal.TaskQueue}
	if err := sub.SubscribeUnclassified(ctx, starter.HandleUnclassified); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("reclassify worker started", "task_queue", cfg.Temporal.TaskQueue, "classifier", classifier.Name())
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
	slog.Info("worker stopped")
}
