// Package recognition wraps the external face recognition provider.
// The recognition algorithm itself (embedding extraction, similarity
// scoring) lives behind this boundary; the pipeline only consumes
// opaque face ids and similarity scores.
package recognition

import (
	"context"
	"errors"

	"github.com/ivan4oto/race-photos/internal/models"
)

// ErrCollectionNotFound is returned by DescribeCollection when the
// collection does not exist yet.
var ErrCollectionNotFound = errors.New("collection not found")

// ImageRef points the provider at an image in the shared object store.
type ImageRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// IndexedFace is one face the provider registered during an index call.
type IndexedFace struct {
	FaceID      string              `json:"face_id"`
	ImageID     string              `json:"image_id,omitempty"`
	BoundingBox *models.BoundingBox `json:"bounding_box,omitempty"`
	Confidence  *float64            `json:"confidence,omitempty"`
}

// RawMatch is one face-level hit from a probe search, before any
// aggregation. Similarity is 0..100.
type RawMatch struct {
	FaceID     string   `json:"face_id"`
	Similarity float64  `json:"similarity"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// SearchOptions tunes a probe search. Nil fields fall back to the
// provider's own defaults.
type SearchOptions struct {
	MaxFaces            *int
	SimilarityThreshold *float64
}

// Provider is the face recognition service boundary. Calls may fail
// transiently or be rate limited; callers decide whether a failure is
// per-item (indexing) or fatal (search).
type Provider interface {
	DescribeCollection(ctx context.Context, collectionID string) error
	CreateCollection(ctx context.Context, collectionID string) error
	IndexFaces(ctx context.Context, collectionID string, image ImageRef, externalImageID string) ([]IndexedFace, error)
	SearchByImage(ctx context.Context, collectionID string, image ImageRef, opts SearchOptions) ([]RawMatch, error)
	DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) error
	CompareFaces(ctx context.Context, source, target ImageRef, threshold float64) (float64, error)
}
