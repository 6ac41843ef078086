package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
)

// maxUploadURLBatch caps one presign request; larger uploads are split
// client-side.
const maxUploadURLBatch = 200

// Presigner issues time-limited object URLs.
type Presigner interface {
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// UploadURLEntry pairs a requested file name with its presigned PUT URL.
type UploadURLEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UploadURLService hands photographers presigned PUT URLs so uploads
// bypass the API and land directly under the event's upload prefix.
type UploadURLService struct {
	presigner Presigner
	logger    *slog.Logger
	putExpiry time.Duration
	getExpiry time.Duration
}

func NewUploadURLService(presigner Presigner, cfg config.PresignConfig, logger *slog.Logger) *UploadURLService {
	putExpiry := cfg.PutExpiration
	if putExpiry <= 0 {
		putExpiry = 2 * time.Hour
	}
	getExpiry := cfg.GetExpiration
	if getExpiry <= 0 {
		getExpiry = time.Hour
	}
	return &UploadURLService{
		presigner: presigner,
		logger:    logger,
		putExpiry: putExpiry,
		getExpiry: getExpiry,
	}
}

// CreatePutURLs presigns one PUT URL per name under
// in/<eventSlug>/<photographerSlug>/raw[/<folder>].
func (s *UploadURLService) CreatePutURLs(ctx context.Context, eventSlug, photographerSlug string, names []string, folder string) ([]UploadURLEntry, error) {
	if eventSlug == "" {
		return nil, fmt.Errorf("event slug is required: %w", models.ErrInvalidInput)
	}
	if photographerSlug == "" {
		return nil, fmt.Errorf("photographer slug is required: %w", models.ErrInvalidInput)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("names list must not be empty: %w", models.ErrInvalidInput)
	}
	if len(names) > maxUploadURLBatch {
		return nil, fmt.Errorf("too many names; max %d: %w", maxUploadURLBatch, models.ErrInvalidInput)
	}

	basePath, err := buildUploadBasePath(eventSlug, photographerSlug, folder)
	if err != nil {
		return nil, err
	}

	s.logger.Info("generating presigned PUT urls",
		"count", len(names),
		"base_path", basePath,
		"expiry", s.putExpiry)

	entries := make([]UploadURLEntry, 0, len(names))
	for _, name := range names {
		safeName, err := SanitizeFilename(name)
		if err != nil {
			return nil, err
		}
		key := basePath + "/" + safeName
		url, err := s.presigner.PresignPut(ctx, key, s.putExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign put %s: %w", key, err)
		}
		entries = append(entries, UploadURLEntry{Name: name, URL: url})
	}
	return entries, nil
}

// CreateGetURL presigns a download URL for one key. A blank key yields
// an empty URL rather than an error.
func (s *UploadURLService) CreateGetURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	url, err := s.presigner.PresignGet(ctx, key, s.getExpiry)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return url, nil
}

func buildUploadBasePath(eventSlug, photographerSlug, folder string) (string, error) {
	eventPart, err := SanitizePathSegment(eventSlug)
	if err != nil {
		return "", err
	}
	photogPart, err := SanitizePathSegment(photographerSlug)
	if err != nil {
		return "", err
	}
	base := "in/" + eventPart + "/" + photogPart + "/raw"
	safeFolder, err := SanitizeOptionalFolder(folder)
	if err != nil {
		return "", err
	}
	if safeFolder != "" {
		base += "/" + safeFolder
	}
	return base, nil
}
