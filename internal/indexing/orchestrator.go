// Package indexing drives the face indexing pipeline: it walks an
// event's unindexed photo backlog, submits each image to the
// recognition provider and records the resulting face metadata.
package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
	"github.com/ivan4oto/race-photos/internal/observability"
	"github.com/ivan4oto/race-photos/internal/recognition"
	"github.com/ivan4oto/race-photos/internal/storage"
)

// blankKeyPlaceholder stands in for an asset whose object key is empty
// after normalization, so the failure still shows up in the report.
const blankKeyPlaceholder = "<null>"

var externalImageIDInvalid = regexp.MustCompile(`[^a-zA-Z0-9_.\-:]`)

// EventCatalog resolves events for indexing runs.
type EventCatalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// PhotoCatalog lists the backlog and records indexing outcomes.
type PhotoCatalog interface {
	ListUnindexedAssets(ctx context.Context, eventID uuid.UUID) ([]models.PhotoAsset, error)
	MarkAssetIndexed(ctx context.Context, id uuid.UUID, status models.IndexStatus, at time.Time) error
}

// FaceWriter persists one metadata record per indexed face.
type FaceWriter interface {
	Save(ctx context.Context, rec models.FaceRecord) error
}

// CollectionEnsurer guarantees the event's collection exists before
// faces are indexed into it.
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context, collectionID string) error
}

type Orchestrator struct {
	events   EventCatalog
	photos   PhotoCatalog
	faces    FaceWriter
	ensurer  CollectionEnsurer
	provider recognition.Provider
	logger   *slog.Logger
	workers  int
}

func NewOrchestrator(
	events EventCatalog,
	photos PhotoCatalog,
	faces FaceWriter,
	ensurer CollectionEnsurer,
	provider recognition.Provider,
	cfg config.RecognitionConfig,
	logger *slog.Logger,
) *Orchestrator {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 5
	}
	return &Orchestrator{
		events:   events,
		photos:   photos,
		faces:    faces,
		ensurer:  ensurer,
		provider: provider,
		logger:   logger,
		workers:  workers,
	}
}

// IndexUnindexedForEvent runs one indexing pass over every unindexed
// asset of the event. Per-image failures are isolated: a failed image
// is marked FAILED and listed in the report while its siblings
// continue. Only setup failures (unknown event, collection creation)
// abort the whole run.
func (o *Orchestrator) IndexUnindexedForEvent(ctx context.Context, eventID uuid.UUID) (*models.IndexingReport, error) {
	start := time.Now()

	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, models.ErrEventNotFound)
	}
	collectionID := event.VectorCollectionID
	if collectionID == "" {
		return nil, fmt.Errorf("event %s has no collection id: %w", eventID, models.ErrNotConfigured)
	}

	if err := o.ensurer.EnsureCollection(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", collectionID, err)
	}

	assets, err := o.photos.ListUnindexedAssets(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list unindexed assets for event %s: %w", eventID, err)
	}

	report := newReportBuilder(len(assets))
	if len(assets) == 0 {
		o.logger.Info("no unindexed assets", "event_id", eventID)
		return report.build(), nil
	}

	o.logger.Info("indexing run started",
		"event_id", eventID,
		"collection_id", collectionID,
		"assets", len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, asset := range assets {
		asset := asset
		g.Go(func() error {
			o.indexOne(gctx, event, collectionID, asset, report)
			return nil
		})
	}
	// Workers never return errors; Wait only observes ctx cancellation.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := report.build()
	observability.IndexingRunDuration.Observe(time.Since(start).Seconds())
	o.logger.Info("indexing run finished",
		"event_id", eventID,
		"requested", result.RequestedImages,
		"indexed", result.SuccessfullyIndexedImages,
		"faces", result.TotalFaces,
		"failed", len(result.FailedImages),
		"duration", time.Since(start))
	return result, nil
}

func (o *Orchestrator) indexOne(ctx context.Context, event *models.Event, collectionID string, asset models.PhotoAsset, report *reportBuilder) {
	key := storage.NormalizeKey(asset.ObjectKey)
	if key == "" {
		label := asset.ObjectKey
		if label == "" {
			label = blankKeyPlaceholder
		}
		o.logger.Warn("asset has blank object key", "asset_id", asset.ID, "event_id", event.ID)
		o.recordOutcome(ctx, asset, models.IndexStatusFailed)
		report.failed(label)
		return
	}

	faces, err := o.provider.IndexFaces(ctx, collectionID,
		recognition.ImageRef{Bucket: asset.Bucket, Key: key},
		buildExternalImageID(key))
	if err != nil {
		o.logger.Error("index faces failed",
			"asset_id", asset.ID,
			"key", key,
			"error", err)
		o.recordOutcome(ctx, asset, models.IndexStatusFailed)
		report.failed(key)
		return
	}

	now := time.Now().UTC()
	for _, face := range faces {
		rec := models.FaceRecord{
			FaceID:       face.FaceID,
			CollectionID: collectionID,
			EventID:      event.ID.String(),
			Bucket:       asset.Bucket,
			PhotoKey:     key,
			ImageID:      face.ImageID,
			BoundingBox:  face.BoundingBox,
			Confidence:   face.Confidence,
			IndexedAt:    now,
		}
		if err := o.faces.Save(ctx, rec); err != nil {
			o.logger.Error("save face record failed",
				"face_id", face.FaceID,
				"key", key,
				"error", err)
			o.recordOutcome(ctx, asset, models.IndexStatusFailed)
			report.failed(key)
			return
		}
	}

	o.recordOutcome(ctx, asset, models.IndexStatusSuccess)
	report.succeeded(key, len(faces))
	observability.FacesIndexed.Add(float64(len(faces)))
}

func (o *Orchestrator) recordOutcome(ctx context.Context, asset models.PhotoAsset, status models.IndexStatus) {
	if err := o.photos.MarkAssetIndexed(ctx, asset.ID, status, time.Now().UTC()); err != nil {
		o.logger.Error("mark asset indexed failed",
			"asset_id", asset.ID,
			"status", status,
			"error", err)
	}
	observability.PhotosIndexed.WithLabelValues(string(status)).Inc()
}

// buildExternalImageID maps an object key onto the character set the
// provider accepts for external image ids.
func buildExternalImageID(key string) string {
	return externalImageIDInvalid.ReplaceAllString(key, ":")
}

// reportBuilder accumulates per-image outcomes from concurrent workers.
type reportBuilder struct {
	mu     sync.Mutex
	report models.IndexingReport
}

func newReportBuilder(requested int) *reportBuilder {
	return &reportBuilder{
		report: models.IndexingReport{
			RequestedImages: requested,
			FacesPerImage:   make(map[string]int),
			FailedImages:    []string{},
		},
	}
}

func (b *reportBuilder) succeeded(key string, faces int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.SuccessfullyIndexedImages++
	b.report.TotalFaces += faces
	b.report.FacesPerImage[key] = faces
}

func (b *reportBuilder) failed(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.FailedImages = append(b.report.FailedImages, key)
}

func (b *reportBuilder) build() *models.IndexingReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.report
	out.FacesPerImage = make(map[string]int, len(b.report.FacesPerImage))
	for k, v := range b.report.FacesPerImage {
		out.FacesPerImage[k] = v
	}
	out.FailedImages = append([]string{}, b.report.FailedImages...)
	return &out
}
