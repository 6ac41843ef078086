// Package search runs probe-image searches against an event's
// recognition collection and aggregates the raw face-level hits down
// to one best match per photo.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
	"github.com/ivan4oto/race-photos/internal/observability"
	"github.com/ivan4oto/race-photos/internal/recognition"
)

// EventCatalog resolves the event whose collection is searched.
type EventCatalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// FaceReader looks up the metadata written at index time for a raw hit.
type FaceReader interface {
	FindByFaceID(ctx context.Context, faceID string) (*models.FaceRecord, error)
}

// URLSigner turns a matched photo key into a time-limited download URL.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Aggregator struct {
	events   EventCatalog
	faces    FaceReader
	provider recognition.Provider
	signer   URLSigner
	logger   *slog.Logger
	opts     recognition.SearchOptions
	bucket   string
	expiry   time.Duration
}

func NewAggregator(
	events EventCatalog,
	faces FaceReader,
	provider recognition.Provider,
	signer URLSigner,
	recCfg config.RecognitionConfig,
	presignCfg config.PresignConfig,
	bucket string,
	logger *slog.Logger,
) *Aggregator {
	expiry := presignCfg.GetExpiration
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Aggregator{
		events:   events,
		faces:    faces,
		provider: provider,
		signer:   signer,
		logger:   logger,
		opts: recognition.SearchOptions{
			MaxFaces:            recCfg.MaxFaces,
			SimilarityThreshold: recCfg.SimilarityThreshold,
		},
		bucket: bucket,
		expiry: expiry,
	}
}

// Search matches the probe photo against the event's collection. Raw
// face hits are folded to one match per photo key, keeping the hit with
// the strictly highest similarity; on ties the first hit seen wins.
// Hits from other events and hits on the probe photo itself are
// dropped, as are hits whose face metadata is missing or unreadable.
func (a *Aggregator) Search(ctx context.Context, eventID uuid.UUID, photoKey string) (*models.SearchResult, error) {
	start := time.Now()

	if a.bucket == "" {
		return nil, fmt.Errorf("no bucket configured: %w", models.ErrNotConfigured)
	}
	probeKey := strings.TrimSpace(photoKey)
	if probeKey == "" {
		return nil, fmt.Errorf("photo key must not be blank: %w", models.ErrInvalidInput)
	}

	event, err := a.events.GetEvent(ctx, eventID)
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

	rawMatches, err := a.provider.SearchByImage(ctx, collectionID,
		recognition.ImageRef{Bucket: a.bucket, Key: probeKey}, a.opts)
	if err != nil {
		return nil, fmt.Errorf("search by image %s: %w", probeKey, err)
	}

	acc := newAccumulator()
	for _, raw := range rawMatches {
		if raw.FaceID == "" {
			continue
		}
		meta, err := a.faces.FindByFaceID(ctx, raw.FaceID)
		if err != nil {
			// A lookup failure drops the one hit, never the search.
			a.logger.Warn("face metadata lookup failed, skipping hit",
				"face_id", raw.FaceID,
				"error", err)
			continue
		}
		if meta == nil {
			a.logger.Debug("no metadata for matched face", "face_id", raw.FaceID)
			continue
		}
		if meta.EventID != eventID.String() {
			a.logger.Debug("skipping cross-event match",
				"face_id", raw.FaceID,
				"face_event", meta.EventID)
			continue
		}
		if meta.PhotoKey == probeKey {
			continue
		}
		acc.offer(meta.PhotoKey, models.AggregatedMatch{
			PhotoURL:    meta.PhotoKey,
			FaceID:      raw.FaceID,
			Similarity:  raw.Similarity,
			Confidence:  raw.Confidence,
			BoundingBox: meta.BoundingBox,
		})
	}

	matches := acc.ordered()
	for idx := range matches {
		url, err := a.signer.PresignGet(ctx, matches[idx].PhotoURL, a.expiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", matches[idx].PhotoURL, err)
		}
		matches[idx].PhotoURL = url
	}

	observability.SearchDuration.Observe(time.Since(start).Seconds())
	observability.SearchMatches.Observe(float64(len(matches)))
	a.logger.Info("search finished",
		"event_id", eventID,
		"probe_key", probeKey,
		"raw_matches", len(rawMatches),
		"aggregated", len(matches),
		"duration", time.Since(start))

	return &models.SearchResult{
		EventID:       eventID.String(),
		ProbePhotoKey: probeKey,
		Matches:       matches,
	}, nil
}

// accumulator keeps the best match per photo key in first-seen order.
type accumulator struct {
	byKey map[string]int
	items []models.AggregatedMatch
}

func newAccumulator() *accumulator {
	return &accumulator{byKey: make(map[string]int)}
}

// offer replaces the stored match only on strictly greater similarity,
// so equal-similarity hits keep the earlier one.
func (c *accumulator) offer(photoKey string, m models.AggregatedMatch) {
	if idx, ok := c.byKey[photoKey]; ok {
		if m.Similarity > c.items[idx].Similarity {
			c.items[idx] = m
		}
		return
	}
	c.byKey[photoKey] = len(c.items)
	c.items = append(c.items, m)
}

func (c *accumulator) ordered() []models.AggregatedMatch {
	out := make([]models.AggregatedMatch, len(c.items))
	copy(out, c.items)
	return out
}
