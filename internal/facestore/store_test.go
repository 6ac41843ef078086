package facestore

import (
	"testing"
	"time"

	"github.com/ivan4oto/race-photos/internal/models"
)

func f(v float64) *float64 { return &v }

func TestEncodeRecordRoundsNumerics(t *testing.T) {
	rec := models.FaceRecord{
		FaceID:       "face-1",
		CollectionID: "event-abc",
		EventID:      "abc",
		Bucket:       "photos",
		PhotoKey:     "in/berlin/ana/raw/img001.jpg",
		ImageID:      "in:berlin:ana:raw:img001.jpg",
		Confidence:   f(99.87654321),
		BoundingBox: &models.BoundingBox{
			Width:  f(0.123456789),
			Height: f(0.5),
			Left:   f(0.000000124),
			Top:    nil,
		},
		IndexedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := encodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.FaceID != rec.FaceID || got.CollectionID != rec.CollectionID {
		t.Fatalf("identity fields changed: %+v", got)
	}
	if got.Confidence == nil || *got.Confidence != 99.876543 {
		t.Errorf("confidence = %v, want 99.876543", got.Confidence)
	}
	if got.BoundingBox == nil {
		t.Fatal("bounding box dropped")
	}
	if *got.BoundingBox.Width != 0.123457 {
		t.Errorf("width = %v, want 0.123457", *got.BoundingBox.Width)
	}
	if *got.BoundingBox.Height != 0.5 {
		t.Errorf("height = %v, want 0.5", *got.BoundingBox.Height)
	}
	if *got.BoundingBox.Left != 0 {
		t.Errorf("left = %v, want 0", *got.BoundingBox.Left)
	}
	if got.BoundingBox.Top != nil {
		t.Errorf("top = %v, want nil", *got.BoundingBox.Top)
	}
}

func TestEncodeRecordRoundTripStable(t *testing.T) {
	rec := models.FaceRecord{
		FaceID:     "face-2",
		Confidence: f(87.123456),
		BoundingBox: &models.BoundingBox{
			Width: f(0.25), Height: f(0.25), Left: f(0.1), Top: f(0.1),
		},
		IndexedAt: time.Now().UTC().Truncate(time.Second),
	}

	first, err := encodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeRecord(first)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := encodeRecord(*decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("round trip not stable:\n first = %s\nsecond = %s", first, second)
	}
}

func TestEncodeRecordNilOptionals(t *testing.T) {
	rec := models.FaceRecord{FaceID: "face-3", EventID: "abc"}
	data, err := encodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Confidence != nil || got.BoundingBox != nil {
		t.Errorf("optionals not nil: %+v", got)
	}
}
