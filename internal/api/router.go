// Package api exposes series and volume lookups over a JSON HTTP API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lepinkainen/tankobon/internal/batch"
	"github.com/lepinkainen/tankobon/internal/edition"
)

// RequestIDHeader carries the per-request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxBatchRequests bounds the body of POST /api/volumes.
const maxBatchRequests = batch.MaxSpecVolumes

type handler struct {
	optimizer *batch.Optimizer
	mapper    *edition.Mapper
}

type routerOptions struct {
	metrics http.Handler
	origins []string
}

// Option configures the router.
type Option func(*routerOptions)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *routerOptions) {
		o.metrics = h
	}
}

// WithCORSOrigins sets the allowed CORS origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(o *routerOptions) {
		o.origins = origins
	}
}

// NewRouter builds the gin engine. mapper may be nil when no alternate
// editions are known.
func NewRouter(optimizer *batch.Optimizer, mapper *edition.Mapper, opts ...Option) *gin.Engine {
	ro := routerOptions{origins: []string{"*"}}
	for _, opt := range opts {
		opt(&ro)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger())
	r.Use(cors.New(corsConfig(ro.origins)))

	h := &handler{optimizer: optimizer, mapper: mapper}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if ro.metrics != nil {
		r.GET("/metrics", gin.WrapH(ro.metrics))
	}

	api := r.Group("/api")
	api.GET("/series/:name", h.getSeries)
	api.GET("/series/:name/volumes", h.getVolumes)
	api.POST("/volumes", h.postVolumes)
	api.GET("/editions", h.listEditions)
	api.GET("/editions/:name", h.getEdition)
	api.GET("/editions/:name/books/:book", h.getEditionBook)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// requestID reuses a caller-supplied ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}
