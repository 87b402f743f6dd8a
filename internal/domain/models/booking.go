package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingPaid      BookingStatus = "PAID"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is one customer's reservation covering 1-5 passengers. Status is
// monotonic: PENDING -> PAID or PENDING -> CANCELLED, never back.
type Booking struct {
	ID             int64
	Code           string
	TripID         int64
	UserID         *int64
	Phone          string
	Status         BookingStatus
	PassengerCount int
	TotalAmount    int64
	CompanyShare   int64
	PlatformFee    int64
	CreatedAt      time.Time
}

// Passenger rows are recreated, never edited, when a booking changes seats.
// seat_number is unique per trip among passengers of non-cancelled bookings.
type Passenger struct {
	ID         int64
	BookingID  int64
	Name       string
	SeatNumber int
	Phone      string
	IDNumber   string
	IsChild    bool
}

// PassengerInput is the per-passenger payload of a reservation request.
// Seat selection is carried separately: a request supplies either a complete
// seat list or none at all.
type PassengerInput struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	IDNumber string `json:"id_number"`
	IsChild  bool   `json:"is_child"`
}
