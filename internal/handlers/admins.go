package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// RegisterAdminRoutes registers the admin audit endpoint.
//
// GET /admins/stale-passwords?days=N
// - days defaults to defaultDays
// - always read from the store, never from cache
func RegisterAdminRoutes(r gin.IRoutes, q UserQueries, defaultDays int) {
	r.GET("/admins/stale-passwords", func(c *gin.Context) {
		days := defaultDays
		if raw := c.Query("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeErrorCode(c, http.StatusBadRequest, "invalid_input", "days must be a non-negative integer")
				return
			}
			days = n
		}

		admins, err := q.StaleAdminPasswords(c.Request.Context(), days)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.StaleAdminsResponse{
			ThresholdDays: days,
			Count:         len(admins),
			Admins:        admins,
		})
	})
}
