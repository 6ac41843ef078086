package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ivan4oto/race-photos/internal/config"
)

// ObjectInfo is the subset of object metadata the pipeline cares about.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	UserMetadata map[string]string
}

type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *MinIOStore) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// PutObject uploads data under the given key.
func (s *MinIOStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// GetObject retrieves data by key.
func (s *MinIOStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// StatObject heads an object and returns its metadata.
func (s *MinIOStore) StatObject(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		UserMetadata: info.UserMetadata,
	}, nil
}

// DeleteObject removes a single object.
func (s *MinIOStore) DeleteObject(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// DeleteByPrefix streams the keys under prefix into a batch remove and
// returns how many objects were deleted.
func (s *MinIOStore) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	list := func(ctx context.Context) <-chan minio.ObjectInfo {
		return s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		})
	}
	remove := func(ctx context.Context, objects <-chan minio.ObjectInfo) <-chan minio.RemoveObjectError {
		return s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{})
	}
	return deleteStreamed(ctx, prefix, list, remove)
}

// deleteStreamed pipes listed objects into the remover. A remove
// failure cancels the listing and drains both channels before the
// first error is returned, so the producer goroutine is never left
// blocked on an abandoned send.
func deleteStreamed(
	ctx context.Context,
	prefix string,
	list func(context.Context) <-chan minio.ObjectInfo,
	remove func(context.Context, <-chan minio.ObjectInfo) <-chan minio.RemoveObjectError,
) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectsCh := make(chan minio.ObjectInfo)
	listErr := make(chan error, 1)

	var sent int64
	go func() {
		defer close(objectsCh)
		for obj := range list(ctx) {
			if obj.Err != nil {
				listErr <- obj.Err
				return
			}
			select {
			case objectsCh <- obj:
				sent++
			case <-ctx.Done():
				listErr <- ctx.Err()
				return
			}
		}
		listErr <- nil
	}()

	// The remover only reports failures; silence means deleted.
	var failed int64
	var removeErr error
	for result := range remove(ctx, objectsCh) {
		if result.Err != nil {
			failed++
			if removeErr == nil {
				removeErr = fmt.Errorf("delete object %s: %w", result.ObjectName, result.Err)
			}
			cancel()
		}
	}

	if removeErr != nil {
		<-listErr
		return sent - failed, removeErr
	}
	if err := <-listErr; err != nil {
		return sent - failed, fmt.Errorf("list objects %s: %w", prefix, err)
	}
	return sent - failed, nil
}

// PresignGet issues a time-limited retrieval URL for the key.
func (s *MinIOStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return u.String(), nil
}

// PresignPut issues a time-limited upload URL for the key.
func (s *MinIOStore) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}

// Ping checks object store connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
