package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// RequestIDKey is the gin context key the request-id middleware sets.
const RequestIDKey = "request_id"

// writeError renders err as the error envelope with the status of its kind.
// Internal details of 5xx errors are not echoed to the client.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	message := apperr.Message(err)
	if status >= 500 && status != 502 {
		message = "internal error"
	}
	writeErrorCode(c, status, string(kind), message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(RequestIDKey),
	})
}
