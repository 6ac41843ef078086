package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivan4oto/race-photos/internal/api/handlers"
	"github.com/ivan4oto/race-photos/internal/audit"
	"github.com/ivan4oto/race-photos/internal/auth"
	"github.com/ivan4oto/race-photos/internal/facestore"
	"github.com/ivan4oto/race-photos/internal/indexing"
	"github.com/ivan4oto/race-photos/internal/queue"
	"github.com/ivan4oto/race-photos/internal/search"
	"github.com/ivan4oto/race-photos/internal/selfie"
	"github.com/ivan4oto/race-photos/internal/storage"
)

type RouterConfig struct {
	APIKey       string
	DB           *storage.PostgresStore
	MinIO        *storage.MinIOStore
	Faces        *facestore.Store
	Producer     *queue.Producer
	Orchestrator *indexing.Orchestrator
	Aggregator   *search.Aggregator
	Counter      *audit.PrefixCounter
	Maintenance  *audit.Maintenance
	UploadURLs   *storage.UploadURLService
	Selfies      *selfie.Service
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Faces, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// Indexing
	indexingH := handlers.NewIndexingHandler(cfg.DB, cfg.Orchestrator, cfg.Counter, cfg.Maintenance, cfg.Producer)
	v1.POST("/events/:id/index", indexingH.Enqueue)
	v1.POST("/events/:id/index/run", indexingH.Run)
	v1.GET("/events/:id/photos/summary", indexingH.Summary)
	v1.GET("/events/:id/prefixes", indexingH.Prefixes)

	// Search
	searchH := handlers.NewSearchHandler(cfg.Aggregator)
	v1.POST("/events/:id/search", searchH.Search)

	// Storage
	storageH := handlers.NewStorageHandler(cfg.DB, cfg.UploadURLs, cfg.Maintenance)
	v1.POST("/uploads/:slug/urls", storageH.UploadURLs)
	v1.DELETE("/storage/prefix", storageH.DeletePrefix)

	// Selfies
	selfieH := handlers.NewSelfieHandler(cfg.Selfies)
	v1.POST("/selfies", selfieH.Upload)
	v1.DELETE("/selfies/:userId", selfieH.Delete)

	return r
}
