package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/facestore"
	"github.com/ivan4oto/race-photos/internal/indexing"
	"github.com/ivan4oto/race-photos/internal/observability"
	"github.com/ivan4oto/race-photos/internal/queue"
	"github.com/ivan4oto/race-photos/internal/recognition"
	"github.com/ivan4oto/race-photos/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting race-photos indexing worker",
		"workers", cfg.Recognition.WorkerCount)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to Redis (face metadata store)
	faces, err := facestore.NewStore(cfg.Redis)
	if err != nil {
		slog.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	defer faces.Close()

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	logger := slog.Default()

	provider, err := recognition.NewClient(cfg.Recognition)
	if err != nil {
		slog.Error("create recognition client", "error", err)
		os.Exit(1)
	}
	ensurer := recognition.NewCollectionEnsurer(provider)
	orchestrator := indexing.NewOrchestrator(db, db, faces, ensurer, provider, cfg.Recognition, logger)
	ingestor := indexing.NewIngestor(minioStore, db, db, logger)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Indexing jobs
	err = consumer.ConsumeIndexingJobs(ctx, "indexing-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var job queue.IndexingJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			slog.Error("unmarshal indexing job", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		report, err := orchestrator.IndexUnindexedForEvent(ctx, job.EventID)
		if err != nil {
			return fmt.Errorf("index event %s: %w", job.EventID, err)
		}
		slog.Info("indexing job done",
			"event_id", job.EventID,
			"indexed", report.SuccessfullyIndexedImages,
			"faces", report.TotalFaces,
			"failed", len(report.FailedImages))
		return nil
	}, cfg.Recognition.WorkerCount)
	if err != nil {
		slog.Error("start indexing consumer", "error", err)
		os.Exit(1)
	}

	// Upload notifications
	err = consumer.ConsumeUploadNotifications(ctx, "upload-ingest", func(ctx context.Context, msg jetstream.Msg) error {
		var notification queue.UploadNotification
		if err := json.Unmarshal(msg.Data(), &notification); err != nil {
			slog.Error("unmarshal upload notification", "error", err)
			return nil
		}

		bucket := ""
		keys := make([]string, 0, len(notification.Records))
		for _, rec := range notification.Records {
			if bucket == "" {
				bucket = rec.S3.Bucket.Name
			}
			if rec.S3.Object.Key != "" {
				keys = append(keys, rec.S3.Object.Key)
			}
		}
		if len(keys) == 0 {
			return nil
		}

		batches, err := ingestor.GroupNotificationKeys(ctx, bucket, keys)
		if err != nil {
			return fmt.Errorf("group notification keys: %w", err)
		}
		for _, batch := range batches {
			result, err := ingestor.Ingest(ctx, batch)
			if err != nil {
				return fmt.Errorf("ingest batch for event %s: %w", batch.EventID, err)
			}
			if len(result.FailedKeys) > 0 {
				return fmt.Errorf("failed to ingest keys: %s", strings.Join(result.FailedKeys, ", "))
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("start upload consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
