package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivan4oto/race-photos/internal/api"
	"github.com/ivan4oto/race-photos/internal/audit"
	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/facestore"
	"github.com/ivan4oto/race-photos/internal/indexing"
	"github.com/ivan4oto/race-photos/internal/observability"
	"github.com/ivan4oto/race-photos/internal/queue"
	"github.com/ivan4oto/race-photos/internal/recognition"
	"github.com/ivan4oto/race-photos/internal/search"
	"github.com/ivan4oto/race-photos/internal/selfie"
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

	slog.Info("starting race-photos API service", "port", cfg.Server.Port)

	if err := storage.RunMigrations(cfg.Database); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

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
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
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
		slog.Error("connect to nats", "error", err)
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
	aggregator := search.NewAggregator(db, faces, provider, minioStore, cfg.Recognition, cfg.Presign, cfg.MinIO.Bucket, logger)
	counter := audit.NewPrefixCounter(db, logger)
	maintenance := audit.NewMaintenance(minioStore, db, logger)
	uploadURLs := storage.NewUploadURLService(minioStore, cfg.Presign, logger)
	selfies := selfie.NewService(minioStore, db, ensurer, provider, cfg.Selfie, logger)

	router := api.NewRouter(api.RouterConfig{
		APIKey:       cfg.Server.APIKey,
		DB:           db,
		MinIO:        minioStore,
		Faces:        faces,
		Producer:     producer,
		Orchestrator: orchestrator,
		Aggregator:   aggregator,
		Counter:      counter,
		Maintenance:  maintenance,
		UploadURLs:   uploadURLs,
		Selfies:      selfies,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
