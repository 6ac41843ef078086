package indexing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
	"github.com/ivan4oto/race-photos/internal/recognition"
)

type fakeEventCatalog struct {
	event *models.Event
	err   error
}

func (f *fakeEventCatalog) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.event != nil && f.event.ID == id {
		return f.event, nil
	}
	return nil, nil
}

type markedAsset struct {
	id     uuid.UUID
	status models.IndexStatus
}

type fakePhotoCatalog struct {
	mu     sync.Mutex
	assets []models.PhotoAsset
	marked []markedAsset
}

func (f *fakePhotoCatalog) ListUnindexedAssets(ctx context.Context, eventID uuid.UUID) ([]models.PhotoAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PhotoAsset, 0, len(f.assets))
	for _, a := range f.assets {
		if a.EventID == eventID && a.IndexStatus == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakePhotoCatalog) MarkAssetIndexed(ctx context.Context, id uuid.UUID, status models.IndexStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, markedAsset{id: id, status: status})
	for i := range f.assets {
		if f.assets[i].ID == id {
			s := status
			f.assets[i].IndexStatus = &s
		}
	}
	return nil
}

func (f *fakePhotoCatalog) statusOf(id uuid.UUID) (models.IndexStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.marked {
		if m.id == id {
			return m.status, true
		}
	}
	return "", false
}

type fakeFaceWriter struct {
	mu    sync.Mutex
	saved []models.FaceRecord
	err   error
}

func (f *fakeFaceWriter) Save(ctx context.Context, rec models.FaceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

type fakeEnsurer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEnsurer) EnsureCollection(ctx context.Context, collectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, collectionID)
	return f.err
}

type fakeIndexProvider struct {
	mu       sync.Mutex
	indexed  []string
	faces    map[string][]recognition.IndexedFace
	failKeys map[string]error
}

func (f *fakeIndexProvider) DescribeCollection(ctx context.Context, collectionID string) error {
	return nil
}

func (f *fakeIndexProvider) CreateCollection(ctx context.Context, collectionID string) error {
	return nil
}

func (f *fakeIndexProvider) IndexFaces(ctx context.Context, collectionID string, image recognition.ImageRef, externalImageID string) ([]recognition.IndexedFace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failKeys[image.Key]; ok {
		return nil, err
	}
	f.indexed = append(f.indexed, image.Key)
	return f.faces[image.Key], nil
}

func (f *fakeIndexProvider) SearchByImage(ctx context.Context, collectionID string, image recognition.ImageRef, opts recognition.SearchOptions) ([]recognition.RawMatch, error) {
	return nil, nil
}

func (f *fakeIndexProvider) DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) error {
	return nil
}

func (f *fakeIndexProvider) CompareFaces(ctx context.Context, source, target recognition.ImageRef, threshold float64) (float64, error) {
	return 0, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func conf(v float64) *float64 { return &v }

func testEvent() *models.Event {
	return &models.Event{
		ID:                 uuid.New(),
		Slug:               "berlin-2025",
		VectorCollectionID: "event-faces-berlin-2025",
	}
}

func asset(eventID uuid.UUID, key string) models.PhotoAsset {
	return models.PhotoAsset{
		ID:        uuid.New(),
		EventID:   eventID,
		Bucket:    "photos",
		ObjectKey: key,
	}
}

func newTestOrchestrator(events EventCatalog, photos PhotoCatalog, faces FaceWriter, ensurer CollectionEnsurer, provider recognition.Provider) *Orchestrator {
	return NewOrchestrator(events, photos, faces, ensurer, provider,
		config.RecognitionConfig{WorkerCount: 3}, discardLogger())
}

func TestIndexUnindexedForEvent(t *testing.T) {
	event := testEvent()
	a1 := asset(event.ID, "in/berlin/ana/raw/one.jpg")
	a2 := asset(event.ID, "/in/berlin/ana/raw/two.jpg")

	photos := &fakePhotoCatalog{assets: []models.PhotoAsset{a1, a2}}
	faces := &fakeFaceWriter{}
	ensurer := &fakeEnsurer{}
	provider := &fakeIndexProvider{
		faces: map[string][]recognition.IndexedFace{
			"in/berlin/ana/raw/one.jpg": {
				{FaceID: "f1", Confidence: conf(99.1)},
				{FaceID: "f2", Confidence: conf(95.5)},
			},
			"in/berlin/ana/raw/two.jpg": {
				{FaceID: "f3", Confidence: conf(88.0)},
			},
		},
	}

	o := newTestOrchestrator(&fakeEventCatalog{event: event}, photos, faces, ensurer, provider)
	report, err := o.IndexUnindexedForEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("IndexUnindexedForEvent: %v", err)
	}

	if report.RequestedImages != 2 || report.SuccessfullyIndexedImages != 2 {
		t.Errorf("requested/indexed = %d/%d, want 2/2",
			report.RequestedImages, report.SuccessfullyIndexedImages)
	}
	if report.TotalFaces != 3 {
		t.Errorf("total faces = %d, want 3", report.TotalFaces)
	}
	if len(report.FailedImages) != 0 {
		t.Errorf("failed images = %v, want none", report.FailedImages)
	}
	if got := report.FacesPerImage["in/berlin/ana/raw/two.jpg"]; got != 1 {
		t.Errorf("faces for two.jpg = %d, want 1", got)
	}
	if len(ensurer.calls) != 1 || ensurer.calls[0] != event.VectorCollectionID {
		t.Errorf("ensurer calls = %v", ensurer.calls)
	}
	if len(faces.saved) != 3 {
		t.Fatalf("saved %d face records, want 3", len(faces.saved))
	}
	for _, rec := range faces.saved {
		if rec.CollectionID != event.VectorCollectionID {
			t.Errorf("face %s collection = %q", rec.FaceID, rec.CollectionID)
		}
		if rec.EventID != event.ID.String() {
			t.Errorf("face %s event = %q", rec.FaceID, rec.EventID)
		}
	}
	if status, ok := photos.statusOf(a2.ID); !ok || status != models.IndexStatusSuccess {
		t.Errorf("asset two status = %v %v, want SUCCESS", status, ok)
	}
}

func TestIndexUnindexedForEventPartialFailure(t *testing.T) {
	event := testEvent()
	good1 := asset(event.ID, "a/one.jpg")
	bad := asset(event.ID, "a/two.jpg")
	good2 := asset(event.ID, "a/three.jpg")

	photos := &fakePhotoCatalog{assets: []models.PhotoAsset{good1, bad, good2}}
	provider := &fakeIndexProvider{
		faces: map[string][]recognition.IndexedFace{
			"a/one.jpg":   {{FaceID: "f1"}},
			"a/three.jpg": {{FaceID: "f2"}},
		},
		failKeys: map[string]error{"a/two.jpg": errors.New("provider unavailable")},
	}
	faces := &fakeFaceWriter{}

	o := newTestOrchestrator(&fakeEventCatalog{event: event}, photos, faces, &fakeEnsurer{}, provider)
	report, err := o.IndexUnindexedForEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("IndexUnindexedForEvent: %v", err)
	}

	if report.SuccessfullyIndexedImages != 2 {
		t.Errorf("indexed = %d, want 2", report.SuccessfullyIndexedImages)
	}
	if len(report.FailedImages) != 1 || report.FailedImages[0] != "a/two.jpg" {
		t.Errorf("failed = %v, want [a/two.jpg]", report.FailedImages)
	}
	if status, _ := photos.statusOf(bad.ID); status != models.IndexStatusFailed {
		t.Errorf("bad asset status = %v, want FAILED", status)
	}
	if status, _ := photos.statusOf(good1.ID); status != models.IndexStatusSuccess {
		t.Errorf("good asset status = %v, want SUCCESS", status)
	}
	if len(faces.saved) != 2 {
		t.Errorf("saved %d face records, want 2", len(faces.saved))
	}
}

func TestIndexUnindexedForEventBlankKeys(t *testing.T) {
	event := testEvent()
	empty := asset(event.ID, "")
	whitespace := asset(event.ID, "   /  ")

	photos := &fakePhotoCatalog{assets: []models.PhotoAsset{empty, whitespace}}
	provider := &fakeIndexProvider{}

	o := newTestOrchestrator(&fakeEventCatalog{event: event}, photos, &fakeFaceWriter{}, &fakeEnsurer{}, provider)
	report, err := o.IndexUnindexedForEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("IndexUnindexedForEvent: %v", err)
	}

	if len(provider.indexed) != 0 {
		t.Errorf("provider called for blank keys: %v", provider.indexed)
	}
	if report.SuccessfullyIndexedImages != 0 {
		t.Errorf("indexed = %d, want 0", report.SuccessfullyIndexedImages)
	}
	got := append([]string{}, report.FailedImages...)
	sort.Strings(got)
	want := []string{"   /  ", "<null>"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("failed = %v, want %v", got, want)
	}
	if status, _ := photos.statusOf(empty.ID); status != models.IndexStatusFailed {
		t.Errorf("empty-key asset status = %v, want FAILED", status)
	}
}

func TestIndexUnindexedForEventNoBacklog(t *testing.T) {
	event := testEvent()
	o := newTestOrchestrator(&fakeEventCatalog{event: event}, &fakePhotoCatalog{}, &fakeFaceWriter{}, &fakeEnsurer{}, &fakeIndexProvider{})

	report, err := o.IndexUnindexedForEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("IndexUnindexedForEvent: %v", err)
	}
	if report.RequestedImages != 0 || report.TotalFaces != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	if report.FailedImages == nil || report.FacesPerImage == nil {
		t.Error("report slices must be non-nil")
	}
}

func TestIndexUnindexedForEventRerunIsNoop(t *testing.T) {
	event := testEvent()
	a := asset(event.ID, "a/one.jpg")
	photos := &fakePhotoCatalog{assets: []models.PhotoAsset{a}}
	provider := &fakeIndexProvider{
		faces: map[string][]recognition.IndexedFace{"a/one.jpg": {{FaceID: "f1"}}},
	}

	o := newTestOrchestrator(&fakeEventCatalog{event: event}, photos, &fakeFaceWriter{}, &fakeEnsurer{}, provider)
	if _, err := o.IndexUnindexedForEvent(context.Background(), event.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := o.IndexUnindexedForEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.RequestedImages != 0 {
		t.Errorf("second run requested = %d, want 0", report.RequestedImages)
	}
	if len(provider.indexed) != 1 {
		t.Errorf("provider indexed %d times, want 1", len(provider.indexed))
	}
}

func TestIndexUnindexedForEventUnknownEvent(t *testing.T) {
	o := newTestOrchestrator(&fakeEventCatalog{}, &fakePhotoCatalog{}, &fakeFaceWriter{}, &fakeEnsurer{}, &fakeIndexProvider{})
	_, err := o.IndexUnindexedForEvent(context.Background(), uuid.New())
	if !errors.Is(err, models.ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestIndexUnindexedForEventEnsureFailureAborts(t *testing.T) {
	event := testEvent()
	photos := &fakePhotoCatalog{assets: []models.PhotoAsset{asset(event.ID, "a/one.jpg")}}
	ensurer := &fakeEnsurer{err: errors.New("provider down")}
	provider := &fakeIndexProvider{}

	o := newTestOrchestrator(&fakeEventCatalog{event: event}, photos, &fakeFaceWriter{}, ensurer, provider)
	_, err := o.IndexUnindexedForEvent(context.Background(), event.ID)
	if err == nil {
		t.Fatal("expected error when collection cannot be ensured")
	}
	if len(provider.indexed) != 0 {
		t.Errorf("provider called despite ensure failure: %v", provider.indexed)
	}
	if len(photos.marked) != 0 {
		t.Errorf("assets marked despite ensure failure: %v", photos.marked)
	}
}

func TestBuildExternalImageID(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"in/berlin/ana/raw/img001.jpg", "in:berlin:ana:raw:img001.jpg"},
		{"plain.jpg", "plain.jpg"},
		{"with space/ümlaut.jpg", "with:space::mlaut.jpg"},
		{"ok_chars-.:x", "ok_chars-.:x"},
	}
	for _, tt := range tests {
		if got := buildExternalImageID(tt.key); got != tt.want {
			t.Errorf("buildExternalImageID(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
