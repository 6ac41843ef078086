package dto

import "github.com/google/uuid"

type IndexJobResponse struct {
	EventID uuid.UUID `json:"event_id"`
	Status  string    `json:"status"`
}

type IndexingReportResponse struct {
	RequestedImages           int            `json:"requested_images"`
	SuccessfullyIndexedImages int            `json:"successfully_indexed_images"`
	TotalFaces                int            `json:"total_faces"`
	FacesPerImage             map[string]int `json:"faces_per_image"`
	FailedImages              []string       `json:"failed_images"`
}

type SearchRequest struct {
	ProbeKey string `json:"probe_key" binding:"required"`
}

type AssetSummaryResponse struct {
	EventID   uuid.UUID `json:"event_id"`
	Indexed   int64     `json:"indexed"`
	Unindexed int64     `json:"unindexed"`
}

type PrefixCountsResponse struct {
	EventID  uuid.UUID        `json:"event_id"`
	Prefixes map[string]int64 `json:"prefixes"`
}
