package models

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusArchived  EventStatus = "ARCHIVED"
)

// Event is the marketplace event as seen by the indexing pipeline.
// Full event administration lives elsewhere; the pipeline only reads
// the slug, the recognition collection id and the upload prefix.
type Event struct {
	ID                 uuid.UUID   `json:"id" db:"id"`
	Slug               string      `json:"slug" db:"slug"`
	Name               string      `json:"name" db:"name"`
	Status             EventStatus `json:"status" db:"status"`
	VectorCollectionID string      `json:"vector_collection_id" db:"vector_collection_id"`
	UploadPrefix       string      `json:"upload_prefix" db:"upload_prefix"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

type Photographer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
