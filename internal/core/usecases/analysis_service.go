package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/core/ports"
	"github.com/samirrijal/civiclens/internal/core/report"
	"github.com/samirrijal/civiclens/internal/pkg/logging"
	"github.com/samirrijal/civiclens/internal/pkg/metrics"
	"github.com/samirrijal/civiclens/internal/pkg/telemetry"
)

// ErrNoClassifier is returned by ClassifyImage when no backend is configured.
var ErrNoClassifier = errors.New("no classifier configured")

// Upload is an image saved to local disk for analysis.
type Upload struct {
	Path        string
	Filename    string
	ContentType string
}

// AnalysisService runs the upload pipeline: classify, locate, store, notify.
type AnalysisService struct {
	assembler  *report.Assembler
	classifier ports.Classifier

	cache    ports.CacheService
	cacheTTL int
	archive  ports.ImageArchive
	issues   ports.IssueRepository
	sinks    []ports.RecordSink
	index    ports.SpatialIndex
	events   ports.EventPublisher
	now      func() time.Time
}

// AnalysisOption configures optional collaborators of an AnalysisService.
type AnalysisOption func(*AnalysisService)

// WithClassificationCache caches classifier answers by image digest.
func WithClassificationCache(cache ports.CacheService, ttlSeconds int) AnalysisOption {
	return func(s *AnalysisService) { s.cache, s.cacheTTL = cache, ttlSeconds }
}

// WithArchive keeps uploaded originals.
func WithArchive(a ports.ImageArchive) AnalysisOption {
	return func(s *AnalysisService) { s.archive = a }
}

// WithRepository persists each issue. Without it issues get no ID.
func WithRepository(r ports.IssueRepository) AnalysisOption {
	return func(s *AnalysisService) { s.issues = r }
}

// WithSinks adds record sinks written after each analysis.
func WithSinks(sinks ...ports.RecordSink) AnalysisOption {
	return func(s *AnalysisService) { s.sinks = append(s.sinks, sinks...) }
}

// WithIndex adds located issues to a spatial index.
func WithIndex(x ports.SpatialIndex) AnalysisOption {
	return func(s *AnalysisService) { s.index = x }
}

// WithPublisher announces stored issues.
func WithPublisher(p ports.EventPublisher) AnalysisOption {
	return func(s *AnalysisService) { s.events = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) AnalysisOption {
	return func(s *AnalysisService) { s.now = now }
}

// NewAnalysisService creates an AnalysisService. classifier may be nil, in
// which case every record has a null classification.
func NewAnalysisService(assembler *report.Assembler, classifier ports.Classifier, opts ...AnalysisOption) *AnalysisService {
	s := &AnalysisService{
		assembler:  assembler,
		classifier: classifier,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze processes one upload. Classification, archive, sink and publish
// failures degrade the result and are logged; only a failure to persist the
// issue is returned.
func (s *AnalysisService) Analyze(ctx context.Context, up Upload) (*domain.Issue, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanAnalyze)
	defer span.End()
	log := logging.FromContext(ctx).With("filename", up.Filename)

	data, err := os.ReadFile(up.Path)
	if err != nil {
		log.Warn("read upload failed", "path", up.Path, "error", err)
	}

	var label *string
	if len(data) > 0 {
		label = s.Classify(ctx, data)
	}

	_, locSpan := telemetry.Tracer().Start(ctx, telemetry.SpanResolveLocation)
	rec, loc := s.assembler.AssembleWithLocation(up.Path, label)
	locSpan.SetAttributes(attribute.String("location.outcome", locationOutcome(loc)))
	locSpan.End()
	metrics.LocationOutcomes.WithLabelValues(locationOutcome(loc)).Inc()

	issue := &domain.Issue{
		AnalysisRecord: rec,
		Point:          loc.Point(),
		Filename:       up.Filename,
		CreatedAt:      s.now().UTC(),
	}

	if s.archive != nil && len(data) > 0 {
		key := ImageKey(data, up.Filename, issue.CreatedAt)
		actx, aspan := telemetry.Tracer().Start(ctx, telemetry.SpanArchive)
		if err := s.archive.Put(actx, key, data, up.ContentType); err != nil {
			aspan.RecordError(err)
			log.Warn("archive upload failed", "key", key, "error", err)
		} else {
			issue.ImageKey = key
		}
		aspan.End()
	}

	if s.issues != nil {
		sctx, sspan := telemetry.Tracer().Start(ctx, telemetry.SpanStore)
		err := s.issues.Insert(sctx, issue)
		sspan.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store issue")
			return nil, fmt.Errorf("store issue: %w", err)
		}
	}

	for _, sink := range s.sinks {
		if err := sink.Write(ctx, issue.AnalysisRecord); err != nil {
			log.Warn("record sink failed", "error", err)
		}
	}

	if s.index != nil && issue.Point != nil && issue.ID != "" {
		s.index.Insert(issue.ID, *issue.Point)
	}

	if s.events != nil {
		if err := s.events.PublishIssueCreated(ctx, issue); err != nil {
			log.Warn("publish issue failed", "issue_id", issue.ID, "error", err)
		}
	}

	metrics.AnalysesTotal.WithLabelValues(issue.Label()).Inc()
	span.SetAttributes(attribute.String("issue.label", issue.Label()))
	log.Info("issue analysed",
		"issue_id", issue.ID,
		"classification", issue.Label(),
		"located", issue.Point != nil,
	)
	return issue, nil
}

// Classify labels image. Any failure is logged and gives nil.
func (s *AnalysisService) Classify(ctx context.Context, image []byte) *string {
	label, err := s.ClassifyImage(ctx, image)
	if err != nil && !errors.Is(err, ErrNoClassifier) {
		logging.FromContext(ctx).Warn("classification failed", "error", err)
	}
	return label
}

// ClassifyImage labels image through the cache and the classifier and
// reports classifier failures.
func (s *AnalysisService) ClassifyImage(ctx context.Context, image []byte) (*string, error) {
	if s.classifier == nil {
		return nil, ErrNoClassifier
	}
	backend := s.classifier.Name()
	key := classificationKey(backend, image)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached cachedLabel
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("classification").Inc()
				return cached.Label, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("classification").Inc()
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanClassify)
	span.SetAttributes(attribute.String("classifier.backend", backend))
	defer span.End()

	start := time.Now()
	label, err := s.classifier.Classify(ctx, image)
	metrics.ClassifierDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClassifierErrors.WithLabelValues(backend).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "classify")
		return nil, fmt.Errorf("classify with %s: %w", backend, err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(cachedLabel{Label: label}); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return label, nil
}

type cachedLabel struct {
	Label *string `json:"label"`
}

func classificationKey(backend string, image []byte) string {
	sum := sha256.Sum256(image)
	return "classification:" + backend + ":" + hex.EncodeToString(sum[:])
}

// ImageKey is the archive key for an upload: date directory, content digest
// and the original extension.
func ImageKey(data []byte, filename string, at time.Time) string {
	sum := sha256.Sum256(data)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = ".bin"
	}
	return at.UTC().Format("2006/01/02") + "/" + hex.EncodeToString(sum[:16]) + ext
}

func locationOutcome(loc domain.LocationReport) string {
	switch {
	case loc.MapReference != nil && loc.CaptureDateStamp != nil:
		return "full"
	case loc.MapReference != nil:
		return "position_only"
	case loc.CaptureDateStamp != nil:
		return "date_only"
	default:
		return "none"
	}
}
