package handlers

import (
	"net/http"

	"busline/internal/clock"
	"busline/internal/domain/models"
	"busline/internal/http/middleware"
	"busline/internal/services"
	"busline/internal/session"

	"github.com/gin-gonic/gin"
)

// BookingHandler fronts the reservation coordinator. The caller's identity
// resolves in order: authenticated account, session-bound phone, guest.
type BookingHandler struct {
	Base     services.BookingService
	Sessions session.Store
	Clock    clock.Clock
}

type createBookingRequest struct {
	TripID        int64                   `json:"trip_id" binding:"required"`
	Passengers    []models.PassengerInput `json:"passengers" binding:"required"`
	SelectedSeats []int                   `json:"selected_seats"`
	SessionID     string                  `json:"session_id"`
}

// POST /api/bookings
func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", false)
		return
	}

	identity := services.Identity{Kind: services.IdentityGuest}
	if userID := middleware.GetUserID(c); userID != nil {
		identity = services.Identity{UserID: userID, Kind: services.IdentityAccount}
	} else if req.SessionID != "" {
		phone, err := h.Sessions.ResolvePhone(req.SessionID, h.Clock.Now())
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		identity = services.Identity{Phone: phone, Kind: services.IdentitySession}
	}

	svc := h.Base
	svc.RequestID = middleware.GetRequestID(c)

	booking, err := svc.Reserve(c.Request.Context(), services.ReserveRequest{
		TripID:        req.TripID,
		Passengers:    req.Passengers,
		SelectedSeats: req.SelectedSeats,
		Identity:      identity,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking": booking,
		"message": "reservation held, complete payment within 10 minutes",
	})
}

// GET /api/bookings
func (h BookingHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == nil {
		respondError(c, http.StatusUnauthorized, "unauthorized", "authentication required", false)
		return
	}

	bookings, err := h.Base.ListBookings(*userID, c.Query("status"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}
