package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
)

// ListingHandler serves read access to the ingested catalog.
type ListingHandler struct {
	repo   *repository.ListingRepository
	logger logger.Logger
}

func NewListingHandler(repo *repository.ListingRepository, log logger.Logger) *ListingHandler {
	return &ListingHandler{
		repo:   repo,
		logger: log,
	}
}

func (h *ListingHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	listing, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		h.logger.Error("Failed to load listing",
			logger.String("listing_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load listing"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) List(c *gin.Context) {
	offset, limit := pagination(c)

	filter := repository.ListingFilter{
		Limit:       limit,
		Offset:      offset,
		Marketplace: c.Query("marketplace"),
		Condition:   c.Query("condition"),
		Quality:     c.Query("quality"),
		Search:      c.Query("search"),
	}

	listings, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list listings",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list listings"})
		return
	}

	total, err := h.repo.Count(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to count listings",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}
