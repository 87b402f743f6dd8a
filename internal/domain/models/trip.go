package models

import "time"

type TripStatus string

const (
	TripScheduled TripStatus = "SCHEDULED"
	TripDelayed   TripStatus = "DELAYED"
	TripBoarding  TripStatus = "BOARDING"
	TripDeparted  TripStatus = "DEPARTED"
	TripCompleted TripStatus = "COMPLETED"
	TripCancelled TripStatus = "CANCELLED"
)

// Terminal states absorb all further lifecycle transitions.
func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

// Bookable reports whether new reservations may target a trip in this
// status. Halt flags are checked separately.
func (s TripStatus) Bookable() bool {
	switch s {
	case TripScheduled, TripDelayed, TripBoarding:
		return true
	default:
		return false
	}
}

type HaltReason string

const (
	HaltNone     HaltReason = ""
	HaltLowSlots HaltReason = "LOW_SLOTS"
	HaltDeparted HaltReason = "DEPARTED"
	HaltManual   HaltReason = "MANUAL"
)

// HaltOverride is the per-trip auto-halt override set by an admin after
// resuming a halted trip. Company-wide disable lives on the company row and
// takes precedence over the per-trip value.
type HaltOverride string

const (
	OverrideNone        HaltOverride = "NONE"
	OverrideTripDisable HaltOverride = "TRIP_DISABLE"
)

// Trip is one scheduled departure with a fixed seat inventory. The ledger
// invariant is available_slots + seats held by non-cancelled bookings ==
// total_slots, maintained under the trip's exclusive ledger lock.
type Trip struct {
	ID                   int64
	CompanyID            int64
	RouteFrom            string
	RouteTo              string
	DepartureTime        time.Time
	EstimatedDurationMin int
	TotalSlots           int
	AvailableSlots       int
	PricePerSeat         int64
	Status               TripStatus
	BookingHalted        bool
	HaltReason           HaltReason
	HaltOverride         HaltOverride
	ReportGenerated      bool
	DriverID             *int64
	ConductorID          *int64
	ActualDepartureTime  *time.Time
	ActualArrivalTime    *time.Time
	TrackingActive       bool
	TrackingToken        string

	// Joined from the owning company.
	CommissionPercent  int
	CompanyAutoHaltOff bool
}

// AutoHaltSuppressed applies the documented override precedence:
// company-wide disable wins over the per-trip override.
func (t Trip) AutoHaltSuppressed() bool {
	if t.CompanyAutoHaltOff {
		return true
	}
	return t.HaltOverride == OverrideTripDisable
}
