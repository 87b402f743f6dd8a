package handlers

import (
	"net/http"

	"busline/internal/clock"
	"busline/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionHandler opens phone-bound sessions for callers without accounts.
type SessionHandler struct {
	Store session.Store
	Clock clock.Clock
}

type createSessionRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// POST /api/sessions
func (h SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", false)
		return
	}

	id, err := h.Store.Create(req.Phone, h.Clock.Now())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}
