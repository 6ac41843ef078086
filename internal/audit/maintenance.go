package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ivan4oto/race-photos/internal/models"
	"github.com/ivan4oto/race-photos/internal/storage"
)

// ObjectDeleter removes whole key ranges from the object store.
type ObjectDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// AssetPruner mirrors object deletion into the photo catalog.
type AssetPruner interface {
	DeleteAssetsByKeyPrefix(ctx context.Context, prefix string) (int64, error)
	GetAssetSummary(ctx context.Context, eventID uuid.UUID) (*models.PhotoAssetSummary, error)
	EventExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// DeleteByPrefixResult reports how much a prefix cleanup removed from
// each side.
type DeleteByPrefixResult struct {
	DeletedObjects int64 `json:"deleted_objects"`
	DeletedAssets  int64 `json:"deleted_assets"`
}

type Maintenance struct {
	objects ObjectDeleter
	assets  AssetPruner
	logger  *slog.Logger
}

func NewMaintenance(objects ObjectDeleter, assets AssetPruner, logger *slog.Logger) *Maintenance {
	return &Maintenance{objects: objects, assets: assets, logger: logger}
}

// DeleteByPrefix removes every object under the prefix and the photo
// asset rows pointing at them. The prefix goes through the same
// sanitizer as upload folders, so traversal sequences and stray
// characters are rejected up front.
func (m *Maintenance) DeleteByPrefix(ctx context.Context, prefix string) (*DeleteByPrefixResult, error) {
	sanitized, err := storage.SanitizeOptionalFolder(prefix)
	if err != nil {
		return nil, err
	}
	if sanitized == "" {
		return nil, fmt.Errorf("prefix is required: %w", models.ErrInvalidInput)
	}

	deletedObjects, err := m.objects.DeleteByPrefix(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("delete objects under %q: %w", sanitized, err)
	}
	deletedAssets, err := m.assets.DeleteAssetsByKeyPrefix(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("delete assets under %q: %w", sanitized, err)
	}

	m.logger.Info("deleted by prefix",
		"prefix", sanitized,
		"objects", deletedObjects,
		"assets", deletedAssets)
	return &DeleteByPrefixResult{
		DeletedObjects: deletedObjects,
		DeletedAssets:  deletedAssets,
	}, nil
}

// AssetSummary reports how much of the event's backlog is indexed.
func (m *Maintenance) AssetSummary(ctx context.Context, eventID uuid.UUID) (*models.PhotoAssetSummary, error) {
	exists, err := m.assets.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("check event %s: %w", eventID, err)
	}
	if !exists {
		return nil, fmt.Errorf("event %s: %w", eventID, models.ErrEventNotFound)
	}
	summary, err := m.assets.GetAssetSummary(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("asset summary for event %s: %w", eventID, err)
	}
	return summary, nil
}
