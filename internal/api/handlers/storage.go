package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ivan4oto/race-photos/internal/audit"
	"github.com/ivan4oto/race-photos/internal/storage"
	"github.com/ivan4oto/race-photos/pkg/dto"
)

type StorageHandler struct {
	db          *storage.PostgresStore
	urls        *storage.UploadURLService
	maintenance *audit.Maintenance
}

func NewStorageHandler(db *storage.PostgresStore, urls *storage.UploadURLService, maintenance *audit.Maintenance) *StorageHandler {
	return &StorageHandler{db: db, urls: urls, maintenance: maintenance}
}

// UploadURLs hands out a batch of presigned PUT URLs for direct
// uploads under the event's raw prefix.
func (h *StorageHandler) UploadURLs(c *gin.Context) {
	eventSlug := c.Param("slug")

	var req dto.UploadURLsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.db.GetEventBySlug(c.Request.Context(), eventSlug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	entries, err := h.urls.CreatePutURLs(c.Request.Context(), event.Slug, req.PhotographerSlug, req.Names, req.Folder)
	if err != nil {
		writeError(c, err)
		return
	}

	urls := make([]dto.UploadURLEntry, len(entries))
	for i, e := range entries {
		urls[i] = dto.UploadURLEntry{Name: e.Name, URL: e.URL}
	}
	c.JSON(http.StatusOK, dto.UploadURLsResponse{URLs: urls})
}

// DeletePrefix removes all objects and catalog rows under a key prefix.
func (h *StorageHandler) DeletePrefix(c *gin.Context) {
	var req dto.DeletePrefixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.maintenance.DeleteByPrefix(c.Request.Context(), req.Prefix)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeletePrefixResponse{
		DeletedObjects: result.DeletedObjects,
		DeletedAssets:  result.DeletedAssets,
	})
}
