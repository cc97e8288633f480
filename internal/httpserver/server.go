package httpserver

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PratikDhanave/identity-sync-service/internal/handlers"
	"github.com/PratikDhanave/identity-sync-service/internal/metrics"
)

// Deps is everything the router needs.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Queries handlers.UserQueries
	Syncer  handlers.SyncRunner
	Feeds   handlers.FeedRunner

	// Ready lists the dependencies /ready pings, keyed by name.
	Ready map[string]handlers.Pinger

	StalePasswordDays int
}

// NewRouter wires middleware and every endpoint.
// Operational: /health, /ready, /metrics
// API: /users..., /admins/stale-passwords, /feeds/scan
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.GET("/health", handlers.HealthHandler())
	r.GET("/ready", handlers.ReadyHandler(d.Ready))

	handlers.RegisterUserRoutes(r, d.Queries, d.Syncer)
	handlers.RegisterAdminRoutes(r, d.Queries, d.StalePasswordDays)
	handlers.RegisterFeedRoutes(r, d.Feeds)

	return r
}

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestID reuses the caller's X-Request-ID when it is a short token of
// letters, digits, '-', '_' or '.', otherwise mints one. The id is echoed
// back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !validRequestID(id) {
			id = "req_" + uuid.NewString()[:12]
		}
		c.Set(handlers.RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// RequestLogger emits one line per request once the handler chain returns.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("request_id", c.GetString(handlers.RequestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
