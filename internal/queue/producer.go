// Package queue carries the pipeline's async traffic over NATS
// JetStream: indexing jobs submitted by the API and upload
// notifications emitted by the object store.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	IndexingStreamName  = "INDEXING"
	IndexingSubjectBase = "indexing"
	UploadsStreamName   = "UPLOADS"
	UploadsSubjectBase  = "uploads"
)

// IndexingJob asks the worker to run one indexing pass for an event.
type IndexingJob struct {
	EventID     uuid.UUID `json:"event_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// UploadNotification is one object-store event batch, the bucket
// notification shape MinIO and S3 both emit.
type UploadNotification struct {
	Records []UploadRecord `json:"Records"`
}

type UploadRecord struct {
	S3 UploadEntity `json:"s3"`
}

type UploadEntity struct {
	Bucket UploadBucket `json:"bucket"`
	Object UploadObject `json:"object"`
}

type UploadBucket struct {
	Name string `json:"name"`
}

type UploadObject struct {
	Key string `json:"key"`
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates the JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        IndexingStreamName,
			Subjects:    []string{IndexingSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  30 * time.Second,
			Description: "Per-event face indexing jobs",
		},
		{
			Name:        UploadsStreamName,
			Subjects:    []string{UploadsSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Description: "Object-store upload notifications",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishIndexingJob enqueues one indexing run for the event.
func (p *Producer) PublishIndexingJob(ctx context.Context, job IndexingJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal indexing job: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", IndexingSubjectBase, job.EventID)
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish indexing job: %w", err)
	}
	return nil
}

// PublishUploadNotification forwards an object-store notification to
// the ingestion worker.
func (p *Producer) PublishUploadNotification(ctx context.Context, bucket string, notification UploadNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal upload notification: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", UploadsSubjectBase, bucket)
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish upload notification: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending indexing jobs.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, IndexingStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
