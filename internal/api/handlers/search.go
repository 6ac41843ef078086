package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ivan4oto/race-photos/internal/search"
	"github.com/ivan4oto/race-photos/pkg/dto"
)

type SearchHandler struct {
	aggregator *search.Aggregator
}

func NewSearchHandler(aggregator *search.Aggregator) *SearchHandler {
	return &SearchHandler{aggregator: aggregator}
}

func (h *SearchHandler) Search(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.aggregator.Search(c.Request.Context(), eventID, req.ProbeKey)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
