package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/metrics"
)

// AdapterHealthHandler exposes the rolling-window adapter health samples.
type AdapterHealthHandler struct {
	aggregator *metrics.Aggregator
}

func NewAdapterHealthHandler(aggregator *metrics.Aggregator) *AdapterHealthHandler {
	return &AdapterHealthHandler{aggregator: aggregator}
}

func (h *AdapterHealthHandler) List(c *gin.Context) {
	samples := h.aggregator.Samples()
	c.JSON(http.StatusOK, gin.H{
		"adapters": samples,
		"count":    len(samples),
	})
}
