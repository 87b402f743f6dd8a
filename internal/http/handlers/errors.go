package handlers

import (
	"net/http"

	"busline/internal/domain"
	"busline/internal/http/middleware"
	"busline/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, retryable bool) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: retryable,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses. Retryable is set
// for the errors whose contract is "same request, try again".
func RespondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), false)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), false)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), true)
	case domain.IsState(err):
		respondError(c, http.StatusUnprocessableEntity, "invalid_state", err.Error(), false)
	case domain.IsTimeout(err):
		respondError(c, http.StatusRequestTimeout, "timeout", err.Error(), true)
	default:
		utils.LogError(middleware.GetRequestID(c), "http", "internal", err)
		respondError(c, http.StatusInternalServerError, "internal_error", "something went wrong", false)
	}
}
