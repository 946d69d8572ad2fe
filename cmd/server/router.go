package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studymeta/backend/config"
	"github.com/studymeta/backend/internal/metrics"
	"github.com/studymeta/backend/internal/middleware"
	"github.com/studymeta/backend/internal/streams"
	"github.com/studymeta/backend/internal/uploads"
	"github.com/studymeta/backend/internal/uploadurls"
	"github.com/studymeta/backend/internal/webhooks"
	"github.com/studymeta/backend/pkg/response"
)

// routes carries everything the HTTP surface is built from.
type routes struct {
	gate       middleware.Authorizer
	limiter    middleware.Limiter
	rateLimit  config.RateLimitConfig
	corsOrigin string
	hsts       bool

	uploads    *uploads.Handler
	streams    *streams.Handler
	uploadURLs *uploadurls.Handler
	webhooks   *webhooks.Handler
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func newRouter(r routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders(r.hsts))
	router.Use(middleware.CORS(r.corsOrigin))
	router.Use(middleware.Logger(r.logger))

	router.GET("/api/health", func(c *gin.Context) {
		response.OK(c, gin.H{"ok": true, "timestamp": time.Now().UTC().Format(time.RFC3339Nano)})
	})
	router.GET("/metrics", r.metrics.Handler())

	general := middleware.RateLimit(r.limiter, "general", r.rateLimit.GeneralLimit, r.rateLimit.GeneralWindow, middleware.ByClientIP, r.logger)
	uploadLimit := middleware.RateLimit(r.limiter, "upload", r.rateLimit.UploadLimit, r.rateLimit.UploadWindow, middleware.ByUser, r.logger)

	api := router.Group("/api")
	api.Use(general)
	{
		api.POST("/admin/upload", middleware.RequireAdmin(r.gate), uploadLimit, r.uploads.Upload)
		api.POST("/stream-url", r.streams.StreamURL)
	}

	// Paths kept compatible with the serverless functions the frontend already calls.
	fn := router.Group("/functions/v1")
	{
		fn.POST("/get-stream-url", general, r.streams.StreamURL)
		fn.POST("/admin-upload-video", general, middleware.RequireAdmin(r.gate), r.uploadURLs.Issue)
		// Keyed by the shared secret and called from one processing host, so not per-IP limited.
		fn.POST("/video-webhook", r.webhooks.Receive)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Body{Success: false, Error: "Not found"})
	})
	return router
}
