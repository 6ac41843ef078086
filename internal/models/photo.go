package models

import (
	"time"

	"github.com/google/uuid"
)

// IndexStatus tracks whether a photo asset has been run through the
// face indexer. An asset starts with no status and transitions exactly
// once, to SUCCESS or FAILED; re-queueing requires an external reset.
type IndexStatus string

const (
	IndexStatusSuccess IndexStatus = "SUCCESS"
	IndexStatusFailed  IndexStatus = "FAILED"
)

// PhotoAsset is one uploaded photo in the catalog. The pipeline reads
// assets and writes back only IndexStatus and IndexedAt.
type PhotoAsset struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	EventID        uuid.UUID    `json:"event_id" db:"event_id"`
	PhotographerID uuid.UUID    `json:"photographer_id" db:"photographer_id"`
	Bucket         string       `json:"bucket" db:"s3_bucket"`
	ObjectKey      string       `json:"object_key" db:"s3_key"`
	IndexStatus    *IndexStatus `json:"index_status,omitempty" db:"index_status"`
	IndexedAt      *time.Time   `json:"indexed_at,omitempty" db:"indexed_at"`
	CapturedAt     *time.Time   `json:"captured_at,omitempty" db:"captured_at"`
	UploadedAt     time.Time    `json:"uploaded_at" db:"uploaded_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// PhotoAssetSummary reports how much of an event's backlog has been indexed.
type PhotoAssetSummary struct {
	Indexed   int64 `json:"indexed"`
	Unindexed int64 `json:"unindexed"`
}
