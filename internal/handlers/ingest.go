// Package handlers contains the gin HTTP handlers for the ingestion API.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/jobs"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
)

// maxBulkBodyBytes bounds the bulk upload body read.
const maxBulkBodyBytes = 8 << 20

const (
	defaultRowLimit = 100
	maxRowLimit     = 1000
)

// IngestHandler serves single and bulk ingestion requests.
type IngestHandler struct {
	coordinator *jobs.Coordinator
	syncSingle  bool
	bulkMaxURLs int
	logger      logger.Logger
}

func NewIngestHandler(coordinator *jobs.Coordinator, syncSingle bool, bulkMaxURLs int, log logger.Logger) *IngestHandler {
	return &IngestHandler{
		coordinator: coordinator,
		syncSingle:  syncSingle,
		bulkMaxURLs: bulkMaxURLs,
		logger:      log,
	}
}

type singleRequest struct {
	URL      string `json:"url"      binding:"required,url"`
	Priority string `json:"priority" binding:"omitempty,oneof=normal high"`
}

// jobError is one failed-URL outcome surfaced on the job poll.
type jobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// singleJobView is the poll response for a job: the header plus the outcome
// fields lifted from its rows.
type singleJobView struct {
	*domain.ImportJob
	ListingID  string         `json:"listing_id,omitempty"`
	Provenance string         `json:"provenance,omitempty"`
	Quality    domain.Quality `json:"quality,omitempty"`
	Errors     []jobError     `json:"errors,omitempty"`
}

// Single ingests one URL. With the sync fast path enabled the pipeline runs
// inline and the listing result is returned; otherwise a queued job is
// returned for polling.
func (h *IngestHandler) Single(c *gin.Context) {
	var req singleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body",
			logger.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if h.syncSingle {
		result, err := h.coordinator.RunSingleSync(c.Request.Context(), req.URL)
		if err != nil {
			h.logger.Warn("Synchronous ingest failed",
				logger.String("url", req.URL),
				logger.Error(err),
			)
			c.JSON(statusForIngestError(err), gin.H{
				"error":      "Ingestion failed",
				"error_code": string(domain.CodeOf(err)),
				"details":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, result)
		return
	}

	job, err := h.coordinator.SubmitSingle(c.Request.Context(), req.URL, domain.JobPriority(req.Priority))
	if err != nil {
		h.logger.Error("Failed to submit single job",
			logger.String("url", req.URL),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit job"})
		return
	}

	h.logger.Info("Single job submitted",
		logger.String("job_id", job.ID),
		logger.String("url", req.URL),
	)

	c.JSON(http.StatusAccepted, job)
}

// GetJob returns the status of a single-URL job, with the listing id and
// extraction outcome once the row finished, or the failure codes when it did
// not.
func (h *IngestHandler) GetJob(c *gin.Context) {
	id := c.Param("job_id")

	job, err := h.coordinator.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to load job",
			logger.String("job_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	rows, err := h.coordinator.GetJobRows(c.Request.Context(), id, 0, defaultRowLimit)
	if err != nil {
		h.logger.Error("Failed to load job rows",
			logger.String("job_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	view := singleJobView{ImportJob: job}
	for _, row := range rows {
		switch row.Status {
		case domain.RowComplete:
			if view.ListingID == "" {
				view.ListingID = row.ListingID
				view.Provenance = row.Provenance
				view.Quality = row.Quality
			}
		case domain.RowFailed:
			view.Errors = append(view.Errors, jobError{Code: row.ErrorCode, Message: row.Error})
		}
	}

	c.JSON(http.StatusOK, view)
}

// Bulk accepts a URL list body (JSON array or newline-delimited) and queues a
// bulk job. A structurally invalid body is rejected outright.
func (h *IngestHandler) Bulk(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBulkBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	urls, err := jobs.ParseBulkFile(body, h.bulkMaxURLs)
	if err != nil {
		h.logger.Debug("Invalid bulk file",
			logger.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bulk file", "details": err.Error()})
		return
	}

	job, err := h.coordinator.SubmitBulk(c.Request.Context(), urls)
	if err != nil {
		h.logger.Error("Failed to submit bulk job",
			logger.Int("url_count", len(urls)),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit job"})
		return
	}

	h.logger.Info("Bulk job submitted",
		logger.String("job_id", job.ID),
		logger.Int("url_count", len(urls)),
	)

	c.JSON(http.StatusAccepted, job)
}

// GetBulkJob returns a bulk job's header, the row outcome tallies, and a
// page of per-URL outcomes.
func (h *IngestHandler) GetBulkJob(c *gin.Context) {
	id := c.Param("job_id")
	offset, limit := pagination(c)

	job, err := h.coordinator.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to load job",
			logger.String("job_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	counts, err := h.coordinator.CountJobRows(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to count job rows",
			logger.String("job_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job rows"})
		return
	}

	rows, err := h.coordinator.GetJobRows(c.Request.Context(), id, offset, limit)
	if err != nil {
		h.logger.Error("Failed to load job rows",
			logger.String("job_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job":      job,
		"rows":     rows,
		"complete": counts.Complete + counts.Failed,
		"success":  counts.Complete,
		"failed":   counts.Failed,
		"offset":   offset,
		"limit":    limit,
	})
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRowLimit)))
	if limit <= 0 {
		limit = defaultRowLimit
	}
	if limit > maxRowLimit {
		limit = maxRowLimit
	}
	return offset, limit
}

// statusForIngestError maps pipeline error codes to HTTP statuses for the
// synchronous fast path.
func statusForIngestError(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodeItemNotFound:
		return http.StatusNotFound
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeConfigurationError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
