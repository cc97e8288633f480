package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// UserQueries is the read side the user routes need.
type UserQueries interface {
	GetByEmail(ctx context.Context, email string) (models.UserRecord, error)
	ScanAll(ctx context.Context) ([]models.UserRecord, error)
	StaleAdminPasswords(ctx context.Context, thresholdDays int) ([]models.UserRecord, error)
}

// SyncRunner triggers a full identity sync.
type SyncRunner interface {
	Sync(ctx context.Context) (models.SyncReport, error)
}

// RegisterUserRoutes registers the user endpoints.
//
// POST|GET /users/sync            run an identity sync, returns the report
// GET      /users                 every record
// GET      /users/:email          last login view
// GET      /users/:email/password password change view, admins only
func RegisterUserRoutes(r gin.IRoutes, q UserQueries, s SyncRunner) {
	sync := func(c *gin.Context) {
		report, err := s.Sync(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
	r.POST("/users/sync", sync)
	// GET stays for existing callers that trigger sync with a plain GET.
	r.GET("/users/sync", sync)

	r.GET("/users", func(c *gin.Context) {
		users, err := q.ScanAll(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
	})

	r.GET("/users/:email", func(c *gin.Context) {
		rec, err := q.GetByEmail(c.Request.Context(), c.Param("email"))
		if err != nil {
			writeError(c, err)
			return
		}

		resp := models.LoginStatusResponse{Email: rec.Email, LastLogin: rec.LastLogin}
		if rec.LastLogin == "" {
			resp.Message = "user has not logged in yet"
		} else {
			resp.Message = "user last logged in at " + rec.LastLogin
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/users/:email/password", func(c *gin.Context) {
		rec, err := q.GetByEmail(c.Request.Context(), c.Param("email"))
		if err != nil {
			writeError(c, err)
			return
		}
		if !rec.Admin {
			writeErrorCode(c, http.StatusForbidden, "forbidden", "password status is only reported for admin users")
			return
		}

		resp := models.PasswordStatusResponse{Email: rec.Email, PasswordChanged: rec.PasswordChanged}
		if rec.PasswordChanged == "" {
			resp.Message = "password has never been changed"
		} else {
			resp.Message = "password last changed at " + rec.PasswordChanged
		}
		c.JSON(http.StatusOK, resp)
	})
}
