// Package facestore persists the durable face-id → photo mapping
// produced by indexing. Records are point-looked-up by face id during
// search aggregation; a miss is a normal outcome, not an error.
package facestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
)

const keyPrefix = "face:"

type Store struct {
	client *redis.Client
}

func NewStore(cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save upserts a face record keyed by its provider-issued face id.
func (s *Store) Save(ctx context.Context, rec models.FaceRecord) error {
	if rec.FaceID == "" {
		return fmt.Errorf("face id must not be blank")
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode face record %s: %w", rec.FaceID, err)
	}
	if err := s.client.Set(ctx, keyPrefix+rec.FaceID, data, 0).Err(); err != nil {
		return fmt.Errorf("store face record %s: %w", rec.FaceID, err)
	}
	return nil
}

// FindByFaceID returns the stored record, or nil when the face id is
// unknown. Unknown ids are expected: a raw provider match may belong
// to a collection outside this system's concern.
func (s *Store) FindByFaceID(ctx context.Context, faceID string) (*models.FaceRecord, error) {
	if faceID == "" {
		return nil, nil
	}
	data, err := s.client.Get(ctx, keyPrefix+faceID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load face record %s: %w", faceID, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("decode face record %s: %w", faceID, err)
	}
	return rec, nil
}

// DeleteByFaceIDs removes the records for the given face ids. Missing
// ids are ignored.
func (s *Store) DeleteByFaceIDs(ctx context.Context, faceIDs []string) error {
	if len(faceIDs) == 0 {
		return nil
	}
	keys := make([]string, len(faceIDs))
	for i, id := range faceIDs {
		keys[i] = keyPrefix + id
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete face records: %w", err)
	}
	return nil
}

// encodeRecord serializes a record with its numeric fields rounded to
// six decimal digits, so a write/read round trip compares equal at that
// precision regardless of the floats' binary representation.
func encodeRecord(rec models.FaceRecord) ([]byte, error) {
	rec.Confidence = models.Round6(rec.Confidence)
	rec.BoundingBox = rec.BoundingBox.Round()
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (*models.FaceRecord, error) {
	rec := &models.FaceRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
