package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/middleware"
	"crudadmin/internal/services"
)

// currentPrincipal returns the authenticated admin from the Gin context.
// Returns ErrUnauthorized if not present.
func currentPrincipal(c *gin.Context) (*services.Principal, error) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return p, nil
}

// parsePathID parses a uint path parameter.
// Returns ErrInvalidInput if the parameter is not a valid positive integer.
func parsePathID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return uint(id), nil
}

// respondWithError writes a consistent JSON error response and marks the
// current action as failed for the action logger. Validation errors carry
// their per-field messages; other AppErrors their code and message;
// anything else becomes a generic internal error.
func respondWithError(c *gin.Context, err error) {
	middleware.SetActionFailure(c, err)
	status, body := middleware.ErrorBody(c, err)
	c.JSON(status, body)
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
