// Package api serves persisted reports over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/report"
)

// Version is reported by /health. cmd overrides it at startup.
var Version = "dev"

// NewRouter builds the engine used by the serve command.
func NewRouter(cfg config.ServerConfig, store *report.Store, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("api")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(log))
	router.Use(CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"healthy":   true,
			"timestamp": time.Now().Unix(),
			"version":   Version,
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg.APIKey, log))
	v1.Use(RateLimitMiddleware(cfg.RateLimit))
	RegisterReportRoutes(v1, store, log)

	return router
}

// RegisterReportRoutes registers the report listing and retrieval routes.
func RegisterReportRoutes(rg *gin.RouterGroup, store *report.Store, log *logger.Logger) {
	rg.GET("/reports", func(c *gin.Context) {
		entries, err := store.List(c.Query("domain"))
		if err != nil {
			log.Errorw("Failed to list reports",
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"count":   len(entries),
			"reports": entries,
		})
	})

	rg.GET("/reports/:name", func(c *gin.Context) {
		name := c.Param("name")

		r, err := store.Load(name)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, r)
		case errors.Is(err, report.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		case errors.Is(err, report.ErrInvalidName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report name"})
		default:
			log.Errorw("Failed to load report",
				"error", err,
				"name", name,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		}
	})
}
