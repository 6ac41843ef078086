package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ivan4oto/race-photos/internal/audit"
	"github.com/ivan4oto/race-photos/internal/indexing"
	"github.com/ivan4oto/race-photos/internal/queue"
	"github.com/ivan4oto/race-photos/internal/storage"
	"github.com/ivan4oto/race-photos/pkg/dto"
)

type IndexingHandler struct {
	db           *storage.PostgresStore
	orchestrator *indexing.Orchestrator
	counter      *audit.PrefixCounter
	maintenance  *audit.Maintenance
	producer     *queue.Producer
}

func NewIndexingHandler(
	db *storage.PostgresStore,
	orchestrator *indexing.Orchestrator,
	counter *audit.PrefixCounter,
	maintenance *audit.Maintenance,
	producer *queue.Producer,
) *IndexingHandler {
	return &IndexingHandler{
		db:           db,
		orchestrator: orchestrator,
		counter:      counter,
		maintenance:  maintenance,
		producer:     producer,
	}
}

// Enqueue submits an indexing job for the worker and returns
// immediately.
func (h *IndexingHandler) Enqueue(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	exists, err := h.db.EventExists(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	job := queue.IndexingJob{EventID: eventID, RequestedAt: time.Now().UTC()}
	if err := h.producer.PublishIndexingJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.IndexJobResponse{EventID: eventID, Status: "queued"})
}

// Run executes an indexing pass in the request and returns the report.
// Meant for admin and test use; production traffic goes through
// Enqueue.
func (h *IndexingHandler) Run(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	report, err := h.orchestrator.IndexUnindexedForEvent(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.IndexingReportResponse{
		RequestedImages:           report.RequestedImages,
		SuccessfullyIndexedImages: report.SuccessfullyIndexedImages,
		TotalFaces:                report.TotalFaces,
		FacesPerImage:             report.FacesPerImage,
		FailedImages:              report.FailedImages,
	})
}

// Summary reports the event's indexed/unindexed asset counts.
func (h *IndexingHandler) Summary(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	summary, err := h.maintenance.AssetSummary(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AssetSummaryResponse{
		EventID:   eventID,
		Indexed:   summary.Indexed,
		Unindexed: summary.Unindexed,
	})
}

// Prefixes returns the per-prefix object counts for the event.
func (h *IndexingHandler) Prefixes(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	counts, err := h.counter.CountObjectPrefixes(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PrefixCountsResponse{EventID: eventID, Prefixes: counts})
}
