package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Events ---

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, status, vector_collection_id, upload_prefix, created_at, updated_at
		 FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.Slug, &ev.Name, &ev.Status, &ev.VectorCollectionID, &ev.UploadPrefix, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	ev := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, status, vector_collection_id, upload_prefix, created_at, updated_at
		 FROM events WHERE slug = $1`, slug,
	).Scan(&ev.ID, &ev.Slug, &ev.Name, &ev.Status, &ev.VectorCollectionID, &ev.UploadPrefix, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event by slug: %w", err)
	}
	return ev, nil
}

// ListEventsWithUploadPrefix returns every event carrying a non-empty
// upload prefix, for resolving incoming object keys to events.
func (s *PostgresStore) ListEventsWithUploadPrefix(ctx context.Context) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, slug, name, status, vector_collection_id, upload_prefix, created_at, updated_at
		 FROM events WHERE upload_prefix <> '' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Slug, &ev.Name, &ev.Status, &ev.VectorCollectionID, &ev.UploadPrefix, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *PostgresStore) EventExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("event exists: %w", err)
	}
	return exists, nil
}

// --- Photographers ---

func (s *PostgresStore) GetPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error) {
	p := &models.Photographer{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, email, name, created_at FROM photographers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Slug, &p.Email, &p.Name, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photographer: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPhotographerBySlug(ctx context.Context, slug string) (*models.Photographer, error) {
	p := &models.Photographer{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, email, name, created_at FROM photographers WHERE slug = $1`, slug,
	).Scan(&p.ID, &p.Slug, &p.Email, &p.Name, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photographer by slug: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPhotographerByEmail(ctx context.Context, email string) (*models.Photographer, error) {
	p := &models.Photographer{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, email, name, created_at FROM photographers WHERE lower(email) = lower($1)`, email,
	).Scan(&p.ID, &p.Slug, &p.Email, &p.Name, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photographer by email: %w", err)
	}
	return p, nil
}

// ListEventPhotographers returns the photographers assigned to an event.
func (s *PostgresStore) ListEventPhotographers(ctx context.Context, eventID uuid.UUID) ([]models.Photographer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.slug, p.email, p.name, p.created_at
		 FROM photographers p
		 JOIN event_photographers ep ON ep.photographer_id = p.id
		 WHERE ep.event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event photographers: %w", err)
	}
	defer rows.Close()

	var photographers []models.Photographer
	for rows.Next() {
		var p models.Photographer
		if err := rows.Scan(&p.ID, &p.Slug, &p.Email, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photographer: %w", err)
		}
		photographers = append(photographers, p)
	}
	return photographers, nil
}

// --- Photo assets ---

// ListUnindexedAssets returns every photo asset of the event that has
// not been through the indexer yet (index status still null).
func (s *PostgresStore) ListUnindexedAssets(ctx context.Context, eventID uuid.UUID) ([]models.PhotoAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, photographer_id, s3_bucket, s3_key, index_status, indexed_at, captured_at, uploaded_at, created_at, updated_at
		 FROM photo_assets WHERE event_id = $1 AND index_status IS NULL ORDER BY uploaded_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list unindexed assets: %w", err)
	}
	defer rows.Close()

	var assets []models.PhotoAsset
	for rows.Next() {
		var a models.PhotoAsset
		if err := rows.Scan(&a.ID, &a.EventID, &a.PhotographerID, &a.Bucket, &a.ObjectKey,
			&a.IndexStatus, &a.IndexedAt, &a.CapturedAt, &a.UploadedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan photo asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// MarkAssetIndexed writes back the indexing outcome for one asset.
// An asset deleted mid-run by another process simply matches zero rows;
// that is not an error.
func (s *PostgresStore) MarkAssetIndexed(ctx context.Context, id uuid.UUID, status models.IndexStatus, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE photo_assets SET index_status = $1, indexed_at = $2, updated_at = now() WHERE id = $3`,
		status, at, id)
	if err != nil {
		return fmt.Errorf("mark asset indexed: %w", err)
	}
	return nil
}

func (s *PostgresStore) AssetExists(ctx context.Context, bucket, objectKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM photo_assets WHERE s3_bucket = $1 AND s3_key = $2)`,
		bucket, objectKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("asset exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CreateAsset(ctx context.Context, a *models.PhotoAsset) error {
	a.ID = uuid.New()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photo_assets (id, event_id, photographer_id, s3_bucket, s3_key, captured_at, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		a.ID, a.EventID, a.PhotographerID, a.Bucket, a.ObjectKey, a.CapturedAt, a.UploadedAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create photo asset: %w", err)
	}
	return nil
}

// StreamObjectKeys invokes fn for every object key of the event without
// materializing the full key list. The iteration stops at the first
// error returned by fn.
func (s *PostgresStore) StreamObjectKeys(ctx context.Context, eventID uuid.UUID, fn func(key string) error) error {
	rows, err := s.pool.Query(ctx,
		`SELECT s3_key FROM photo_assets WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("stream object keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("scan object key: %w", err)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresStore) GetAssetSummary(ctx context.Context, eventID uuid.UUID) (*models.PhotoAssetSummary, error) {
	sum := &models.PhotoAssetSummary{}
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE index_status IS NOT NULL),
		        count(*) FILTER (WHERE index_status IS NULL)
		 FROM photo_assets WHERE event_id = $1`, eventID,
	).Scan(&sum.Indexed, &sum.Unindexed)
	if err != nil {
		return nil, fmt.Errorf("asset summary: %w", err)
	}
	return sum, nil
}

// DeleteAssetsByKeyPrefix removes catalog rows whose object key starts
// with the given prefix. Used by storage maintenance together with the
// object-store batch delete.
func (s *PostgresStore) DeleteAssetsByKeyPrefix(ctx context.Context, prefix string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM photo_assets WHERE s3_key LIKE $1 || '%'`, prefix)
	if err != nil {
		return 0, fmt.Errorf("delete assets by prefix: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- User selfies ---

type UserSelfie struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	FaceID      string    `db:"face_id"`
	ObjectKey   string    `db:"s3_key"`
	UploadCount int       `db:"upload_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (s *PostgresStore) GetSelfieByUserID(ctx context.Context, userID uuid.UUID) (*UserSelfie, error) {
	sf := &UserSelfie{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, face_id, s3_key, upload_count, created_at, updated_at
		 FROM user_selfies WHERE user_id = $1`, userID,
	).Scan(&sf.ID, &sf.UserID, &sf.FaceID, &sf.ObjectKey, &sf.UploadCount, &sf.CreatedAt, &sf.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get selfie: %w", err)
	}
	return sf, nil
}

func (s *PostgresStore) SaveSelfie(ctx context.Context, sf *UserSelfie) error {
	if sf.ID == uuid.Nil {
		sf.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_selfies (id, user_id, face_id, s3_key, upload_count)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET face_id = EXCLUDED.face_id, s3_key = EXCLUDED.s3_key,
		     upload_count = EXCLUDED.upload_count, updated_at = now()`,
		sf.ID, sf.UserID, sf.FaceID, sf.ObjectKey, sf.UploadCount)
	if err != nil {
		return fmt.Errorf("save selfie: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSelfie(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_selfies WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete selfie: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSelfieNotFound
	}
	return nil
}
