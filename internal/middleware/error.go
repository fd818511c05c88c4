package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/logger"
)

// ErrorHandler returns a Gin middleware that converts errors set on the Gin
// context into consistent JSON error responses. AppErrors are returned with
// their code and message; unexpected errors are logged and return a generic
// internal error to avoid leaking details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// Process the last error (most relevant in a middleware chain)
		status, body := ErrorBody(c, c.Errors.Last().Err)
		c.JSON(status, body)
	}
}

// ErrorBody renders err as a status code and JSON body. Validation errors
// carry their per-field messages.
func ErrorBody(c *gin.Context, err error) (int, gin.H) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		return apperrors.ErrValidationFailed.StatusCode, gin.H{
			"error": gin.H{
				"code":    apperrors.ErrValidationFailed.Code,
				"message": apperrors.ErrValidationFailed.Message,
				"fields":  verr.Fields,
			},
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"message", appErr.Message,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
				"request_id", RequestID(c),
			)
		}
		return appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		}
	}

	// Unexpected error: log full details, return generic message
	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", RequestID(c),
	)
	return apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	}
}
