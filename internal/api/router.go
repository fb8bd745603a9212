package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/handlers"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/jobs"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/metrics"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
)

const (
	corsMaxAgeHours   = 12
	healthPingTimeout = 2 * time.Second
)

// Pinger reports backing-store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles everything the router needs.
type Deps struct {
	Coordinator *jobs.Coordinator
	Listings    *repository.ListingRepository
	Aggregator  *metrics.Aggregator
	DB          Pinger
	Config      *config.Config
	Logger      logger.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()

	// CORS middleware - must be first
	router.Use(cors.New(cors.Config{
		AllowOrigins: deps.Config.Server.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
			"Authorization", "accept", "origin",
			"Cache-Control", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           corsMaxAgeHours * time.Hour,
	}))

	// Middleware
	router.Use(ginLogger(deps.Logger))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()

		if err := deps.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := router.Group("/api/v1")

	ingestHandler := handlers.NewIngestHandler(
		deps.Coordinator,
		deps.Config.Ingest.SyncSingle,
		deps.Config.Ingest.BulkMaxURLs,
		deps.Logger,
	)
	listingHandler := handlers.NewListingHandler(deps.Listings, deps.Logger)
	healthHandler := handlers.NewAdapterHealthHandler(deps.Aggregator)

	// Ingestion endpoints
	ingest := v1.Group("/ingest")
	ingest.POST("/single", ingestHandler.Single)
	ingest.POST("/bulk", ingestHandler.Bulk)
	ingest.GET("/bulk/:job_id", ingestHandler.GetBulkJob)
	ingest.GET("/:job_id", ingestHandler.GetJob)

	// Catalog read endpoints
	listings := v1.Group("/listings")
	listings.GET("", listingHandler.List)
	listings.GET("/:id", listingHandler.GetByID)

	// Adapter health
	v1.GET("/adapters/health", healthHandler.List)

	return router
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", statusCode),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", duration),
		)
	}
}
