package models

import "time"

// Audit action tags. Machine-readable, append-only, written by every state
// transition and every reconciliation action.
const (
	ActionBookingCreated   = "BOOKING_CREATED"
	ActionBookingUpdated   = "BOOKING_UPDATED"
	ActionBookingExpired   = "BOOKING_EXPIRED"
	ActionPaymentTimeout   = "PAYMENT_TIMEOUT"
	ActionAutoHaltLowSlots = "AUTO_HALT_LOW_SLOTS"
	ActionTripSoldOut      = "TRIP_SOLD_OUT"
	ActionTripTransition   = "TRIP_STATUS_CHANGE"
	ActionStaffReset       = "STAFF_RESET"
)

// ActorSystem marks entries produced by the reconciliation sweep and other
// non-interactive paths.
const ActorSystem = "SYSTEM"

type AuditEntry struct {
	ID        int64
	Actor     string
	Action    string
	TripID    *int64
	CompanyID *int64
	Detail    map[string]any
	CreatedAt time.Time
}
