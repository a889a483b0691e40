package usecases_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/core/location"
	"github.com/samirrijal/civiclens/internal/core/ports"
	"github.com/samirrijal/civiclens/internal/core/report"
	"github.com/samirrijal/civiclens/internal/core/usecases"
	"github.com/samirrijal/civiclens/internal/pkg/exiftest"
)

var fixedNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func newAnalysis(classifier *mockClassifier, opts ...usecases.AnalysisOption) *usecases.AnalysisService {
	opts = append(opts, usecases.WithClock(func() time.Time { return fixedNow }))
	var c ports.Classifier
	if classifier != nil {
		c = classifier
	}
	return usecases.NewAnalysisService(report.NewAssembler(location.NewResolver(nil)), c, opts...)
}

func TestAnalysisService_Analyze_Full(t *testing.T) {
	path := exiftest.WithGPS(t, exiftest.FullGPS())
	classifier := &mockClassifier{classifyFn: func(ctx context.Context, image []byte) (*string, error) {
		return strPtr("pothole"), nil
	}}
	repo := &mockIssueRepo{}
	archive := &mockArchive{}
	sink := &recordingSink{}
	pub := &recordingPublisher{}
	index := newRecordingIndex()

	svc := newAnalysis(classifier,
		usecases.WithRepository(repo),
		usecases.WithArchive(archive),
		usecases.WithSinks(sink),
		usecases.WithPublisher(pub),
		usecases.WithIndex(index),
	)

	issue, err := svc.Analyze(context.Background(), usecases.Upload{Path: path, Filename: "Road.JPG", ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if issue.ID != "issue-1" {
		t.Errorf("ID = %q, want issue-1", issue.ID)
	}
	if issue.Classification == nil || *issue.Classification != "pothole" {
		t.Errorf("Classification = %v", issue.Classification)
	}
	if issue.Location == nil || *issue.Location != "https://www.google.com/maps?q=37.422,-122.084" {
		t.Errorf("Location = %v", issue.Location)
	}
	if issue.GPSDateStamp == nil || *issue.GPSDateStamp != "2023:05:14" {
		t.Errorf("GPSDateStamp = %v", issue.GPSDateStamp)
	}
	if issue.Point == nil || issue.Point.Lat != 37.422 {
		t.Errorf("Point = %+v", issue.Point)
	}
	if !issue.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v", issue.CreatedAt)
	}

	if len(archive.keys) != 1 || issue.ImageKey != archive.keys[0] {
		t.Errorf("archive keys = %v, ImageKey = %q", archive.keys, issue.ImageKey)
	}
	if filepath.Ext(issue.ImageKey) != ".jpg" {
		t.Errorf("ImageKey %q should keep the lowercased extension", issue.ImageKey)
	}
	if len(sink.records) != 1 || sink.records[0] != issue.AnalysisRecord {
		t.Errorf("sink records = %+v", sink.records)
	}
	if len(pub.created) != 1 || pub.created[0].ID != "issue-1" {
		t.Errorf("published = %+v", pub.created)
	}
	if _, ok := index.points["issue-1"]; !ok {
		t.Error("issue not added to index")
	}
}

func TestAnalysisService_Analyze_ClassifierFailureIsAbsence(t *testing.T) {
	path := exiftest.WithGPS(t, exiftest.FullGPS())
	classifier := &mockClassifier{classifyFn: func(ctx context.Context, image []byte) (*string, error) {
		return nil, errors.New("connection refused")
	}}
	pub := &recordingPublisher{}
	svc := newAnalysis(classifier, usecases.WithRepository(&mockIssueRepo{}), usecases.WithPublisher(pub))

	issue, err := svc.Analyze(context.Background(), usecases.Upload{Path: path, Filename: "a.jpg"})
	if err != nil {
		t.Fatalf("classifier failure must not fail the analysis: %v", err)
	}
	if issue.Classification != nil {
		t.Errorf("Classification = %q, want nil", *issue.Classification)
	}
	if issue.Location == nil {
		t.Error("Location should still resolve")
	}
	if len(pub.created) != 1 || pub.created[0].Label() != "unclassified" {
		t.Errorf("published %+v", pub.created)
	}
}

func TestAnalysisService_Analyze_NoMetadata(t *testing.T) {
	path := exiftest.WriteFile(t, "plain.jpg", exiftest.PlainJPEG())
	svc := newAnalysis(&mockClassifier{classifyFn: func(ctx context.Context, image []byte) (*string, error) {
		return strPtr("garbage"), nil
	}})

	issue, err := svc.Analyze(context.Background(), usecases.Upload{Path: path, Filename: "plain.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	if issue.GPSDateStamp != nil || issue.Location != nil || issue.Point != nil {
		t.Errorf("location fields should be absent: %+v", issue)
	}
	if issue.Classification == nil || *issue.Classification != "garbage" {
		t.Errorf("Classification = %v", issue.Classification)
	}
	if issue.ID != "" {
		t.Errorf("ID = %q without a repository", issue.ID)
	}
}

func TestAnalysisService_Analyze_MissingFile(t *testing.T) {
	classifier := &mockClassifier{}
	sink := &recordingSink{}
	svc := newAnalysis(classifier, usecases.WithSinks(sink))

	issue, err := svc.Analyze(context.Background(), usecases.Upload{Path: filepath.Join(t.TempDir(), "gone.jpg")})
	if err != nil {
		t.Fatal(err)
	}
	if classifier.calls != 0 {
		t.Errorf("classifier called %d times for a missing file", classifier.calls)
	}
	if issue.AnalysisRecord != (domain.AnalysisRecord{}) {
		t.Errorf("record = %+v, want all absent", issue.AnalysisRecord)
	}
	if len(sink.records) != 1 {
		t.Errorf("sink got %d records, want 1", len(sink.records))
	}
}

func TestAnalysisService_Analyze_EmptyUploadSkipsClassifier(t *testing.T) {
	path := exiftest.WriteFile(t, "empty.jpg", []byte{})
	classifier := &mockClassifier{}
	archive := &mockArchive{}
	svc := newAnalysis(classifier, usecases.WithArchive(archive))

	issue, err := svc.Analyze(context.Background(), usecases.Upload{Path: path, Filename: "empty.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	if classifier.calls != 0 {
		t.Errorf("classifier called %d times for a zero-byte upload", classifier.calls)
	}
	if issue.ImageKey != "" {
		t.Errorf("ImageKey = %q for a zero-byte upload", issue.ImageKey)
	}
	if issue.AnalysisRecord != (domain.AnalysisRecord{}) {
		t.Errorf("record = %+v, want all absent", issue.AnalysisRecord)
	}
}

func TestAnalysisService_Analyze_RepoFailure(t *testing.T) {
	path := exiftest.WithGPS(t, exiftest.FullGPS())
	repo := &mockIssueRepo{insertFn: func(ctx context.Context, issue *domain.Issue) error {
		return errors.New("db down")
	}}
	sink := &recordingSink{}
	pub := &recordingPublisher{}
	svc := newAnalysis(nil, usecases.WithRepository(repo), usecases.WithSinks(sink), usecases.WithPublisher(pub))

	if _, err := svc.Analyze(context.Background(), usecases.Upload{Path: path}); err == nil {
		t.Fatal("expected repository error")
	}
	if len(sink.records) != 0 || len(pub.created) != 0 {
		t.Error("nothing should be emitted after a failed insert")
	}
}

func TestAnalysisService_Analyze_DegradedCollaborators(t *testing.T) {
	path := exiftest.WithGPS(t, exiftest.FullGPS())
	archive := &mockArchive{putFn: func(ctx context.Context, key string, data []byte, contentType string) error {
		return errors.New("bucket gone")
	}}
	sink := &recordingSink{err: errors.New("disk full")}
	pub := &recordingPublisher{err: errors.New("nats down")}
	svc := newAnalysis(nil, usecases.WithRepository(&mockIssueRepo{}),
		usecases.WithArchive(archive), usecases.WithSinks(sink), usecases.WithPublisher(pub))

	issue, err := svc.Analyze(context.Background(), usecases.Upload{Path: path, Filename: "x.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issue.ImageKey != "" {
		t.Errorf("ImageKey = %q after failed archive", issue.ImageKey)
	}
}

func TestAnalysisService_ClassifyImage_Cache(t *testing.T) {
	classifier := &mockClassifier{classifyFn: func(ctx context.Context, image []byte) (*string, error) {
		return nil, nil // model saw nothing
	}}
	cache := newMemCache()
	svc := newAnalysis(classifier, usecases.WithClassificationCache(cache, 60))
	img := []byte("image-bytes")

	for i := 0; i < 3; i++ {
		label, err := svc.ClassifyImage(context.Background(), img)
		if err != nil {
			t.Fatal(err)
		}
		if label != nil {
			t.Fatalf("label = %q, want nil", *label)
		}
	}
	if classifier.calls != 1 {
		t.Errorf("classifier called %d times, want 1 (explicit no-match is cached)", classifier.calls)
	}
}

func TestAnalysisService_ClassifyImage_ErrorsNotCached(t *testing.T) {
	fail := true
	classifier := &mockClassifier{classifyFn: func(ctx context.Context, image []byte) (*string, error) {
		if fail {
			return nil, errors.New("timeout")
		}
		return strPtr("garbage"), nil
	}}
	svc := newAnalysis(classifier, usecases.WithClassificationCache(newMemCache(), 60))

	if _, err := svc.ClassifyImage(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	label, err := svc.ClassifyImage(context.Background(), []byte("x"))
	if err != nil || label == nil || *label != "garbage" {
		t.Fatalf("second call = %v, %v", label, err)
	}
	if classifier.calls != 2 {
		t.Errorf("classifier called %d times, want 2", classifier.calls)
	}
}

func TestAnalysisService_ClassifyImage_NoClassifier(t *testing.T) {
	svc := newAnalysis(nil)
	if _, err := svc.ClassifyImage(context.Background(), []byte("x")); !errors.Is(err, usecases.ErrNoClassifier) {
		t.Errorf("err = %v, want ErrNoClassifier", err)
	}
	if got := svc.Classify(context.Background(), []byte("x")); got != nil {
		t.Errorf("Classify = %q, want nil", *got)
	}
}

func TestImageKey(t *testing.T) {
	at := time.Date(2024, 1, 2, 23, 59, 0, 0, time.FixedZone("X", 3600))
	key := usecases.ImageKey([]byte("abc"), "Photo.PNG", at)
	want := "2024/01/02/ba7816bf8f01cfea414140de5dae2223.png"
	if key != want {
		t.Errorf("ImageKey = %q, want %q", key, want)
	}
	if got := usecases.ImageKey([]byte("abc"), "noext", at); filepath.Ext(got) != ".bin" {
		t.Errorf("ImageKey without extension = %q", got)
	}
}
