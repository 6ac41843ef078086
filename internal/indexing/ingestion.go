package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivan4oto/race-photos/internal/models"
	"github.com/ivan4oto/race-photos/internal/observability"
	"github.com/ivan4oto/race-photos/internal/storage"
)

const blankKeyFailureLabel = "<blank>"

// captureMetadataKeys are the user-metadata keys probed, in order, for
// the photo's capture timestamp. Matching is case insensitive.
var captureMetadataKeys = []string{
	"captured-at",
	"capture-timestamp",
	"captured_at",
	"capture_time",
	"datetimeoriginal",
}

// ObjectStore is the object-store surface ingestion needs.
type ObjectStore interface {
	Bucket() string
	StatObject(ctx context.Context, key string) (*storage.ObjectInfo, error)
}

// AssetCatalog records newly ingested photo assets.
type AssetCatalog interface {
	AssetExists(ctx context.Context, bucket, objectKey string) (bool, error)
	CreateAsset(ctx context.Context, a *models.PhotoAsset) error
}

// IngestionCatalog resolves the parties an upload belongs to.
type IngestionCatalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error)
	GetPhotographerBySlug(ctx context.Context, slug string) (*models.Photographer, error)
	ListEventsWithUploadPrefix(ctx context.Context) ([]models.Event, error)
	ListEventPhotographers(ctx context.Context, eventID uuid.UUID) ([]models.Photographer, error)
}

// UploadBatch is one group of uploaded object keys attributed to a
// single event and photographer.
type UploadBatch struct {
	EventID        uuid.UUID
	PhotographerID uuid.UUID
	Bucket         string
	ObjectKeys     []string
}

type Ingestor struct {
	objects ObjectStore
	assets  AssetCatalog
	catalog IngestionCatalog
	logger  *slog.Logger
}

func NewIngestor(objects ObjectStore, assets AssetCatalog, catalog IngestionCatalog, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		objects: objects,
		assets:  assets,
		catalog: catalog,
		logger:  logger,
	}
}

// Ingest turns one upload batch into photo asset records. Keys already
// in the catalog are skipped; keys whose object cannot be read are
// reported as failures without aborting the batch.
func (i *Ingestor) Ingest(ctx context.Context, batch UploadBatch) (*models.IngestionResult, error) {
	if len(batch.ObjectKeys) == 0 {
		return nil, fmt.Errorf("object keys must not be empty: %w", models.ErrInvalidInput)
	}
	bucket := strings.TrimSpace(batch.Bucket)
	if bucket == "" {
		bucket = i.objects.Bucket()
	}
	if bucket == "" {
		return nil, fmt.Errorf("no bucket configured: %w", models.ErrNotConfigured)
	}

	event, err := i.catalog.GetEvent(ctx, batch.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", batch.EventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", batch.EventID, models.ErrEventNotFound)
	}
	photographer, err := i.catalog.GetPhotographer(ctx, batch.PhotographerID)
	if err != nil {
		return nil, fmt.Errorf("load photographer %s: %w", batch.PhotographerID, err)
	}
	if photographer == nil {
		return nil, fmt.Errorf("photographer %s not found: %w", batch.PhotographerID, models.ErrInvalidInput)
	}

	result := &models.IngestionResult{
		RequestedKeys:   len(batch.ObjectKeys),
		StoredIDs:       []uuid.UUID{},
		SkippedExisting: []string{},
		FailedKeys:      []string{},
	}

	for _, rawKey := range batch.ObjectKeys {
		key := storage.NormalizeKey(rawKey)
		if key == "" {
			result.FailedKeys = append(result.FailedKeys, blankKeyFailureLabel)
			continue
		}

		exists, err := i.assets.AssetExists(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("check asset %s/%s: %w", bucket, key, err)
		}
		if exists {
			result.SkippedExisting = append(result.SkippedExisting, key)
			continue
		}

		info, err := i.objects.StatObject(ctx, key)
		if err != nil {
			i.logger.Error("read object metadata failed",
				"bucket", bucket,
				"key", key,
				"error", err)
			result.FailedKeys = append(result.FailedKeys, key)
			observability.PhotosIngested.WithLabelValues("failed").Inc()
			continue
		}

		asset := &models.PhotoAsset{
			EventID:        event.ID,
			PhotographerID: photographer.ID,
			Bucket:         bucket,
			ObjectKey:      key,
			UploadedAt:     uploadedAt(info),
			CapturedAt:     extractCaptureTimestamp(info.UserMetadata),
		}
		if err := i.assets.CreateAsset(ctx, asset); err != nil {
			return nil, fmt.Errorf("create asset %s/%s: %w", bucket, key, err)
		}
		result.StoredRecords++
		result.StoredIDs = append(result.StoredIDs, asset.ID)
		observability.PhotosIngested.WithLabelValues("stored").Inc()
	}

	i.logger.Info("ingested upload batch",
		"event_id", event.ID,
		"photographer_id", photographer.ID,
		"requested", result.RequestedKeys,
		"stored", result.StoredRecords,
		"skipped", len(result.SkippedExisting),
		"failed", len(result.FailedKeys))
	return result, nil
}

// GroupNotificationKeys attributes raw object-store notification keys
// to (event, photographer) upload batches. Keys that match no event's
// upload prefix, or whose photographer cannot be inferred, are skipped
// with a warning.
func (i *Ingestor) GroupNotificationKeys(ctx context.Context, bucket string, rawKeys []string) ([]UploadBatch, error) {
	events, err := i.catalog.ListEventsWithUploadPrefix(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	type groupKey struct {
		eventID        uuid.UUID
		photographerID uuid.UUID
	}
	groups := make(map[groupKey]*UploadBatch)
	var order []groupKey

	for _, rawKey := range rawKeys {
		key := DecodeNotificationKey(rawKey)
		event := matchEventByPrefix(events, key)
		if event == nil {
			i.logger.Warn("no event upload prefix matched key", "key", key)
			continue
		}
		photographer, err := i.resolvePhotographer(ctx, event, key)
		if err != nil {
			return nil, err
		}
		if photographer == nil {
			i.logger.Warn("no photographer inferred for key",
				"key", key,
				"event_id", event.ID)
			continue
		}

		gk := groupKey{eventID: event.ID, photographerID: photographer.ID}
		batch, ok := groups[gk]
		if !ok {
			batch = &UploadBatch{
				EventID:        event.ID,
				PhotographerID: photographer.ID,
				Bucket:         bucket,
			}
			groups[gk] = batch
			order = append(order, gk)
		}
		batch.ObjectKeys = append(batch.ObjectKeys, key)
	}

	out := make([]UploadBatch, 0, len(order))
	for _, gk := range order {
		out = append(out, *groups[gk])
	}
	return out, nil
}

func matchEventByPrefix(events []models.Event, key string) *models.Event {
	for idx := range events {
		prefix := normalizePrefix(events[idx].UploadPrefix)
		if prefix != "" && strings.HasPrefix(key, prefix) {
			return &events[idx]
		}
	}
	return nil
}

// resolvePhotographer reads the path segment after the event's upload
// prefix as a photographer slug. When the slug is unknown but the event
// has exactly one photographer assigned, that one is used.
func (i *Ingestor) resolvePhotographer(ctx context.Context, event *models.Event, key string) (*models.Photographer, error) {
	prefix := normalizePrefix(event.UploadPrefix)
	if prefix == "" || len(key) <= len(prefix) {
		return nil, nil
	}
	remainder := strings.TrimPrefix(key[len(prefix):], "/")
	slug, _, _ := strings.Cut(remainder, "/")
	if slug == "" {
		return nil, nil
	}

	photographer, err := i.catalog.GetPhotographerBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("resolve photographer slug %q: %w", slug, err)
	}
	if photographer != nil {
		return photographer, nil
	}

	assigned, err := i.catalog.ListEventPhotographers(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list event photographers: %w", err)
	}
	if len(assigned) == 1 {
		i.logger.Warn("unknown photographer slug, falling back to event's only photographer",
			"slug", slug,
			"event_id", event.ID)
		return &assigned[0], nil
	}
	return nil, nil
}

func normalizePrefix(prefix string) string {
	return strings.TrimLeft(strings.TrimSpace(prefix), "/")
}

// DecodeNotificationKey undoes the URL encoding object-store
// notifications apply to keys. A literal plus must survive, so it is
// re-escaped before decoding.
func DecodeNotificationKey(key string) string {
	decoded, err := url.QueryUnescape(strings.ReplaceAll(key, "+", "%2B"))
	if err != nil {
		return key
	}
	return decoded
}

func uploadedAt(info *storage.ObjectInfo) time.Time {
	if info != nil && !info.LastModified.IsZero() {
		return info.LastModified
	}
	return time.Now().UTC()
}

// extractCaptureTimestamp probes the object's user metadata for a
// capture time. Values may be RFC 3339 instants, offset timestamps or
// epoch milliseconds.
func extractCaptureTimestamp(metadata map[string]string) *time.Time {
	if len(metadata) == 0 {
		return nil
	}
	for _, captureKey := range captureMetadataKeys {
		value := findMetadataValue(metadata, captureKey)
		if strings.TrimSpace(value) == "" {
			continue
		}
		if ts := parseTimestamp(value); ts != nil {
			return ts
		}
	}
	return nil
}

func findMetadataValue(metadata map[string]string, targetKey string) string {
	for k, v := range metadata {
		if strings.EqualFold(k, targetKey) {
			return v
		}
	}
	return ""
}

func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		t = t.UTC()
		return &t
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil && epoch > 0 {
		t := time.UnixMilli(epoch).UTC()
		return &t
	}
	return nil
}
