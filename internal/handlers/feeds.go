package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// FeedRunner reconciles one event feed link.
type FeedRunner interface {
	Ingest(ctx context.Context, link string) (models.FeedReport, error)
}

// RegisterFeedRoutes registers the feed endpoint.
//
// POST /feeds/scan {"s3_link": "..."}
// - returns the reconciliation report
// - a repeat of a recent successful link returns the earlier report with replayed=true
func RegisterFeedRoutes(r gin.IRoutes, f FeedRunner) {
	r.POST("/feeds/scan", func(c *gin.Context) {
		var req models.ScanFeedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "invalid_input", "s3_link required")
			return
		}

		report, err := f.Ingest(c.Request.Context(), req.S3Link)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})
}
