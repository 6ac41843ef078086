package models

import (
	"math"
	"time"
)

// BoundingBox locates a face within its source image. Coordinates are
// normalized to 0..1 as reported by the recognition provider; any field
// may be absent.
type BoundingBox struct {
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Left   *float64 `json:"left,omitempty"`
	Top    *float64 `json:"top,omitempty"`
}

// Round returns a copy with every coordinate rounded to six decimal
// digits, the precision the metadata store persists at.
func (b *BoundingBox) Round() *BoundingBox {
	if b == nil {
		return nil
	}
	return &BoundingBox{
		Width:  Round6(b.Width),
		Height: Round6(b.Height),
		Left:   Round6(b.Left),
		Top:    Round6(b.Top),
	}
}

// Round6 rounds an optional float to six decimal digits.
func Round6(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*1e6) / 1e6
	return &r
}

// FaceRecord is the durable mapping from a provider-issued face id back
// to the photo and event it was indexed from. Written once per indexed
// face, never mutated, deleted only with its source photo or selfie.
type FaceRecord struct {
	FaceID       string       `json:"face_id"`
	CollectionID string       `json:"collection_id"`
	EventID      string       `json:"event_id"`
	Bucket       string       `json:"bucket"`
	PhotoKey     string       `json:"photo_key"`
	ImageID      string       `json:"image_id,omitempty"`
	BoundingBox  *BoundingBox `json:"bounding_box,omitempty"`
	Confidence   *float64     `json:"confidence,omitempty"`
	IndexedAt    time.Time    `json:"indexed_at"`
}
