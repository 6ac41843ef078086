// Package selfie registers one reference selfie per user in a
// dedicated recognition collection. The registered face backs later
// self-service photo searches.
package selfie

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
	"github.com/ivan4oto/race-photos/internal/recognition"
	"github.com/ivan4oto/race-photos/internal/storage"
)

// ObjectStore is the object-store surface the selfie flow needs.
type ObjectStore interface {
	Bucket() string
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// SelfieCatalog persists the per-user selfie record.
type SelfieCatalog interface {
	GetSelfieByUserID(ctx context.Context, userID uuid.UUID) (*storage.UserSelfie, error)
	SaveSelfie(ctx context.Context, sf *storage.UserSelfie) error
	DeleteSelfie(ctx context.Context, userID uuid.UUID) error
}

// CollectionEnsurer guarantees the selfie collection exists.
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context, collectionID string) error
}

type Service struct {
	objects  ObjectStore
	catalog  SelfieCatalog
	ensurer  CollectionEnsurer
	provider recognition.Provider
	logger   *slog.Logger
	cfg      config.SelfieConfig
}

func NewService(
	objects ObjectStore,
	catalog SelfieCatalog,
	ensurer CollectionEnsurer,
	provider recognition.Provider,
	cfg config.SelfieConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		objects:  objects,
		catalog:  catalog,
		ensurer:  ensurer,
		provider: provider,
		logger:   logger,
		cfg:      cfg,
	}
}

// Upload registers or replaces the user's selfie. The image must hold
// exactly one face. A replacement must compare against the existing
// selfie above the similarity threshold, so a stranger cannot swap in
// their own face. Uploads per user are capped.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data []byte) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id is required: %w", models.ErrInvalidInput)
	}
	if len(data) == 0 {
		return fmt.Errorf("selfie file is required: %w", models.ErrInvalidInput)
	}
	if s.cfg.MaxBytes > 0 && int64(len(data)) > s.cfg.MaxBytes {
		return fmt.Errorf("selfie exceeds %d byte limit: %w", s.cfg.MaxBytes, models.ErrInvalidInput)
	}
	if s.objects.Bucket() == "" {
		return fmt.Errorf("no bucket configured: %w", models.ErrNotConfigured)
	}
	if s.cfg.CollectionID == "" {
		return fmt.Errorf("selfie collection id not configured: %w", models.ErrNotConfigured)
	}

	if err := s.ensurer.EnsureCollection(ctx, s.cfg.CollectionID); err != nil {
		return fmt.Errorf("ensure selfie collection: %w", err)
	}

	existing, err := s.catalog.GetSelfieByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load selfie for user %s: %w", userID, err)
	}
	if existing != nil && s.cfg.MaxUploads > 0 && existing.UploadCount >= s.cfg.MaxUploads {
		return fmt.Errorf("maximum selfie uploads reached: %w", models.ErrInvalidInput)
	}

	key := buildSelfieKey(userID, filename)
	if err := s.objects.PutObject(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("store selfie object: %w", err)
	}

	faces, err := s.provider.IndexFaces(ctx, s.cfg.CollectionID,
		recognition.ImageRef{Bucket: s.objects.Bucket(), Key: key},
		userID.String())
	if err != nil {
		s.cleanupUpload(ctx, key, nil)
		return fmt.Errorf("index selfie: %w", err)
	}
	if len(faces) == 0 {
		s.cleanupUpload(ctx, key, nil)
		return fmt.Errorf("no face detected in the selfie: %w", models.ErrInvalidInput)
	}
	if len(faces) > 1 {
		s.cleanupUpload(ctx, key, faceIDs(faces))
		return fmt.Errorf("only one face is allowed in the selfie: %w", models.ErrInvalidInput)
	}
	newFaceID := faces[0].FaceID
	if newFaceID == "" {
		s.cleanupUpload(ctx, key, faceIDs(faces))
		return fmt.Errorf("provider returned no face id for selfie")
	}

	if existing != nil {
		similarity, err := s.provider.CompareFaces(ctx,
			recognition.ImageRef{Bucket: s.objects.Bucket(), Key: existing.ObjectKey},
			recognition.ImageRef{Bucket: s.objects.Bucket(), Key: key},
			s.cfg.SimilarityThreshold)
		if err != nil {
			s.cleanupUpload(ctx, key, []string{newFaceID})
			return fmt.Errorf("compare selfies: %w", err)
		}
		if similarity < s.cfg.SimilarityThreshold {
			s.cleanupUpload(ctx, key, []string{newFaceID})
			return fmt.Errorf("selfie appears to be a different person: %w", models.ErrInvalidInput)
		}

		s.deleteFace(ctx, existing.FaceID)
		s.deleteObject(ctx, existing.ObjectKey)
		existing.FaceID = newFaceID
		existing.ObjectKey = key
		existing.UploadCount++
		if err := s.catalog.SaveSelfie(ctx, existing); err != nil {
			return fmt.Errorf("save selfie record: %w", err)
		}
		s.logger.Info("replaced selfie",
			"user_id", userID,
			"face_id", newFaceID,
			"similarity", similarity)
		return nil
	}

	sf := &storage.UserSelfie{
		UserID:      userID,
		FaceID:      newFaceID,
		ObjectKey:   key,
		UploadCount: 1,
	}
	if err := s.catalog.SaveSelfie(ctx, sf); err != nil {
		return fmt.Errorf("save selfie record: %w", err)
	}
	s.logger.Info("saved new selfie", "user_id", userID, "face_id", newFaceID)
	return nil
}

// Delete removes the user's selfie: its indexed face, its object and
// its catalog record.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id is required: %w", models.ErrInvalidInput)
	}
	selfie, err := s.catalog.GetSelfieByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load selfie for user %s: %w", userID, err)
	}
	if selfie == nil {
		return models.ErrSelfieNotFound
	}

	s.deleteFace(ctx, selfie.FaceID)
	s.deleteObject(ctx, selfie.ObjectKey)
	if err := s.catalog.DeleteSelfie(ctx, userID); err != nil {
		return fmt.Errorf("delete selfie record: %w", err)
	}
	s.logger.Info("deleted selfie", "user_id", userID, "face_id", selfie.FaceID)
	return nil
}

func (s *Service) cleanupUpload(ctx context.Context, key string, faceIDs []string) {
	if len(faceIDs) > 0 {
		if err := s.provider.DeleteFaces(ctx, s.cfg.CollectionID, faceIDs); err != nil {
			s.logger.Warn("cleanup of indexed selfie faces failed",
				"face_ids", faceIDs,
				"error", err)
		}
	}
	s.deleteObject(ctx, key)
}

func (s *Service) deleteFace(ctx context.Context, faceID string) {
	if faceID == "" {
		return
	}
	if err := s.provider.DeleteFaces(ctx, s.cfg.CollectionID, []string{faceID}); err != nil {
		s.logger.Warn("delete selfie face failed", "face_id", faceID, "error", err)
	}
}

func (s *Service) deleteObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.objects.DeleteObject(ctx, key); err != nil {
		s.logger.Warn("delete selfie object failed", "key", key, "error", err)
	}
}

func faceIDs(faces []recognition.IndexedFace) []string {
	out := make([]string, 0, len(faces))
	for _, f := range faces {
		if f.FaceID != "" {
			out = append(out, f.FaceID)
		}
	}
	return out
}

// buildSelfieKey places each upload under the user's own selfie folder
// with a random name. The original extension survives when it looks
// like one.
func buildSelfieKey(userID uuid.UUID, filename string) string {
	ext := ".jpg"
	if candidate := path.Ext(strings.TrimSpace(filename)); candidate != "" && len(candidate) <= 5 {
		ext = candidate
	}
	return fmt.Sprintf("selfies/%s/%s%s", userID, uuid.New(), ext)
}
