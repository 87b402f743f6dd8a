package handlers

import (
	"net/http"
	"strconv"

	"busline/internal/http/middleware"
	"busline/internal/repositories"
	"busline/internal/services"

	"github.com/gin-gonic/gin"
)

// TripHandler serves read-side trip endpoints: the seat map and the
// boarding manifest.
type TripHandler struct {
	TripRepo      repositories.TripRepo
	PassengerRepo repositories.PassengerRepo
}

func tripIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid trip id", false)
		return 0, false
	}
	return id, true
}

// GET /api/trips/:id/seats
func (h TripHandler) Seats(c *gin.Context) {
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	trip, err := h.TripRepo.GetByID(nil, tripID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	held, err := h.PassengerRepo.SeatsHeld(nil, tripID, 0)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trip_id":         trip.ID,
		"status":          trip.Status,
		"booking_halted":  trip.BookingHalted,
		"total_slots":     trip.TotalSlots,
		"available_slots": trip.AvailableSlots,
		"occupied_seats":  held,
	})
}

// GET /api/trips/:id/manifest
func (h TripHandler) Manifest(c *gin.Context) {
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	svc := services.ManifestService{
		TripRepo:      h.TripRepo,
		PassengerRepo: h.PassengerRepo,
		RequestID:     middleware.GetRequestID(c),
	}
	pdf, filename, err := svc.Generate(tripID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
