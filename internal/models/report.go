package models

import "github.com/google/uuid"

// IndexingReport summarizes one indexing run for an event. It is
// returned to the caller and never persisted.
type IndexingReport struct {
	RequestedImages           int            `json:"requested_images"`
	SuccessfullyIndexedImages int            `json:"successfully_indexed_images"`
	TotalFaces                int            `json:"total_faces"`
	FacesPerImage             map[string]int `json:"faces_per_image"`
	FailedImages              []string       `json:"failed_images"`
}

// IngestionResult summarizes one batch of upload notifications turned
// into photo assets.
type IngestionResult struct {
	RequestedKeys   int         `json:"requested_keys"`
	StoredRecords   int         `json:"stored_records"`
	StoredIDs       []uuid.UUID `json:"stored_ids"`
	SkippedExisting []string    `json:"skipped_existing"`
	FailedKeys      []string    `json:"failed_keys"`
}

// AggregatedMatch is the single best-similarity match retained for one
// photo key in one search call.
type AggregatedMatch struct {
	PhotoURL    string       `json:"photo_url"`
	FaceID      string       `json:"face_id"`
	Similarity  float64      `json:"similarity"`
	Confidence  *float64     `json:"confidence,omitempty"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

// SearchResult is the response of one probe search against an event's
// collection. Matches keep the aggregator's insertion order; callers
// needing a similarity ranking sort client-side.
type SearchResult struct {
	EventID       string            `json:"event_id"`
	ProbePhotoKey string            `json:"probe_photo_key"`
	Matches       []AggregatedMatch `json:"matches"`
}
