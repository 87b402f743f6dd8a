package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	intconfig "busline/internal/config"
	"busline/internal/domain"
	"busline/internal/domain/models"
	"busline/internal/notify"
	"busline/internal/repositories"
	"busline/internal/utils"

	"github.com/google/uuid"
)

const (
	maxPassengers = 5
	maxChildren   = 3

	// reserveTimeout bounds the whole reservation transaction. Hitting it
	// returns TimeoutError and leaves no partial state behind.
	reserveTimeout = 10 * time.Second
)

type IdentityKind string

const (
	IdentityAccount IdentityKind = "account"
	IdentitySession IdentityKind = "session"
	IdentityGuest   IdentityKind = "guest"
)

// Identity is the resolved caller of a reservation: an authenticated
// account, a session-bound phone, or a guest keyed by the first passenger's
// phone.
type Identity struct {
	UserID *int64
	Phone  string
	Kind   IdentityKind
}

// Actor renders the identity for audit entries.
func (i Identity) Actor() string {
	if i.UserID != nil {
		return fmt.Sprintf("user:%d", *i.UserID)
	}
	return "phone:" + i.Phone
}

// ReserveRequest carries one reservation attempt. Client-supplied totals are
// deliberately absent: every amount is recomputed server-side.
type ReserveRequest struct {
	TripID        int64
	Passengers    []models.PassengerInput
	SelectedSeats []int
	Identity      Identity
}

// BookingService is the transaction coordinator: it validates, reserves and
// commits a booking against the seat ledger as one atomic unit.
//
// Retry contract: ConflictError and TimeoutError mean the caller should
// retry the same request immediately; they are expected under load. All
// other errors are final for the given input.
type BookingService struct {
	TripRepo      repositories.TripRepo
	BookingRepo   repositories.BookingRepo
	PassengerRepo repositories.PassengerRepo
	PaymentRepo   repositories.PaymentRepo
	AuditRepo     repositories.AuditRepo
	Monitor       AutoHaltMonitor
	Notifier      notify.Notifier
	DB            *sql.DB
	RequestID     string
}

func (s BookingService) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

// Reserve executes the booking protocol:
//
//  1. take the trip's non-blocking ledger lock (busy -> ConflictError),
//  2. check trip eligibility,
//  3. reuse the customer's PENDING booking on the trip when present
//     (update-in-place with a signed seat delta), create otherwise,
//  4. resolve seats, recompute money, write rows + ledger delta,
//  5. evaluate auto-halt/sold-out in the same transaction,
//  6. commit, then fire side effects best-effort.
func (s BookingService) Reserve(ctx context.Context, req ReserveRequest) (models.Booking, error) {
	var out models.Booking

	if err := validateReserveRequest(req); err != nil {
		return out, err
	}
	identity := req.Identity
	if identity.Phone == "" {
		identity.Phone = strings.TrimSpace(req.Passengers[0].Phone)
	}

	ctx, cancel := context.WithTimeout(ctx, reserveTimeout)
	defer cancel()

	// The named ledger lock is session-scoped, so the whole protocol runs on
	// one pinned connection and the lock is released only after commit.
	conn, err := s.db().Conn(ctx)
	if err != nil {
		return out, wrapReserveErr(ctx, err)
	}
	defer conn.Close()

	if err := s.TripRepo.AcquireLedgerLock(ctx, conn, req.TripID); err != nil {
		return out, err
	}
	defer s.TripRepo.ReleaseLedgerLock(context.Background(), conn, req.TripID)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return out, wrapReserveErr(ctx, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	trip, err := s.TripRepo.GetByID(tx, req.TripID)
	if err != nil {
		return out, wrapReserveErr(ctx, err)
	}
	if !trip.Status.Bookable() {
		return out, domain.StateError{Resource: "trip", State: strings.ToLower(string(trip.Status))}
	}
	if trip.BookingHalted {
		return out, domain.StateError{Resource: "trip", State: "halted", Msg: "online booking is suspended for this trip"}
	}

	existing, hasExisting, err := s.BookingRepo.GetPendingForCustomer(tx, req.TripID, identity.UserID, identity.Phone)
	if err != nil {
		return out, wrapReserveErr(ctx, err)
	}

	newCount := len(req.Passengers)
	delta := newCount
	excludeBookingID := int64(0)
	if hasExisting {
		// Update-in-place: only the additional seats need headroom, a
		// reduction is always valid.
		delta = newCount - existing.PassengerCount
		excludeBookingID = existing.ID
	}
	if delta > trip.AvailableSlots {
		return out, domain.ValidationError{
			Field: "passengers",
			Msg:   fmt.Sprintf("only %d seats available", trip.AvailableSlots),
		}
	}

	held, err := s.PassengerRepo.SeatsHeld(tx, req.TripID, excludeBookingID)
	if err != nil {
		return out, wrapReserveErr(ctx, err)
	}
	seats, err := AssignSeats(trip.TotalSlots, held, req.SelectedSeats, newCount)
	if err != nil {
		return out, err
	}

	// Money is authoritative here; anything the client sent is ignored.
	total := trip.PricePerSeat * int64(newCount)
	companyShare, platformFee := utils.CommissionSplit(total, trip.CommissionPercent)

	rows := make([]models.Passenger, newCount)
	for i, p := range req.Passengers {
		rows[i] = models.Passenger{
			Name:       strings.TrimSpace(p.Name),
			SeatNumber: seats[i],
			Phone:      strings.TrimSpace(p.Phone),
			IDNumber:   strings.TrimSpace(p.IDNumber),
			IsChild:    p.IsChild,
		}
	}

	actor := identity.Actor()
	if hasExisting {
		if err := s.BookingRepo.UpdateReservation(tx, existing.ID, newCount, total, companyShare, platformFee); err != nil {
			return out, wrapReserveErr(ctx, err)
		}
		if err := s.PassengerRepo.ReplaceForBooking(tx, existing.ID, rows); err != nil {
			return out, wrapReserveErr(ctx, err)
		}
		if err := s.PaymentRepo.UpdateAmount(tx, existing.ID, total); err != nil {
			return out, wrapReserveErr(ctx, err)
		}
		if err := s.AuditRepo.Append(tx, models.AuditEntry{
			Actor:     actor,
			Action:    models.ActionBookingUpdated,
			TripID:    &trip.ID,
			CompanyID: &trip.CompanyID,
			Detail:    map[string]any{"booking_id": existing.ID, "seat_delta": delta, "passenger_count": newCount},
		}); err != nil {
			return out, wrapReserveErr(ctx, err)
		}
		out = existing
		out.PassengerCount = newCount
		out.TotalAmount = total
		out.CompanyShare = companyShare
		out.PlatformFee = platformFee
	} else {
		out = models.Booking{
			Code:           uuid.NewString(),
			TripID:         trip.ID,
			UserID:         identity.UserID,
			Phone:          identity.Phone,
			Status:         models.BookingPending,
			PassengerCount: newCount,
			TotalAmount:    total,
			CompanyShare:   companyShare,
			PlatformFee:    platformFee,
		}
		id, err := s.BookingRepo.Insert(tx, out)
		if err != nil {
			return models.Booking{}, wrapReserveErr(ctx, err)
		}
		out.ID = id
		if err := s.PassengerRepo.ReplaceForBooking(tx, id, rows); err != nil {
			return models.Booking{}, wrapReserveErr(ctx, err)
		}
		if _, err := s.PaymentRepo.CreatePending(tx, id, uuid.NewString(), total); err != nil {
			return models.Booking{}, wrapReserveErr(ctx, err)
		}
		if err := s.AuditRepo.Append(tx, models.AuditEntry{
			Actor:     actor,
			Action:    models.ActionBookingCreated,
			TripID:    &trip.ID,
			CompanyID: &trip.CompanyID,
			Detail:    map[string]any{"booking_id": id, "passenger_count": newCount},
		}); err != nil {
			return models.Booking{}, wrapReserveErr(ctx, err)
		}
	}

	if err := s.TripRepo.ApplySlotDelta(tx, trip.ID, delta); err != nil {
		return models.Booking{}, wrapReserveErr(ctx, err)
	}

	tasks, err := s.Monitor.Evaluate(tx, trip, trip.AvailableSlots-delta, actor)
	if err != nil {
		return models.Booking{}, wrapReserveErr(ctx, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Booking{}, wrapReserveErr(ctx, err)
	}
	committed = true

	utils.LogEvent(s.RequestID, "booking", "reserve",
		fmt.Sprintf("booking_id=%d trip_id=%d seats=%d delta=%d", out.ID, trip.ID, newCount, delta))

	// Side effects stay outside the lock/transaction boundary; their failure
	// never rolls back or fails the booking.
	s.Notifier.Dispatch(tasks)
	s.Notifier.SendSMS(out.Phone, confirmationSMS(out, trip, seats))

	return out, nil
}

// ListBookings returns the user's bookings, optionally filtered by status.
func (s BookingService) ListBookings(userID int64, status string) ([]models.Booking, error) {
	filter := models.BookingStatus(strings.ToUpper(strings.TrimSpace(status)))
	switch filter {
	case "", models.BookingPending, models.BookingPaid, models.BookingCancelled:
	default:
		return nil, domain.ValidationError{Field: "status", Msg: "unknown status filter"}
	}
	return s.BookingRepo.ListByUser(userID, filter)
}

func validateReserveRequest(req ReserveRequest) error {
	if req.TripID <= 0 {
		return domain.ValidationError{Field: "trip_id", Msg: "required"}
	}
	n := len(req.Passengers)
	if n < 1 || n > maxPassengers {
		return domain.ValidationError{Field: "passengers", Msg: fmt.Sprintf("between 1 and %d passengers per booking", maxPassengers)}
	}
	children := 0
	for i, p := range req.Passengers {
		if strings.TrimSpace(p.Name) == "" {
			return domain.ValidationError{Field: "passengers", Msg: fmt.Sprintf("passenger %d: name required", i+1)}
		}
		if p.IsChild {
			children++
		}
	}
	if children > maxChildren {
		return domain.ValidationError{Field: "passengers", Msg: fmt.Sprintf("at most %d children per booking", maxChildren)}
	}
	if children == n {
		return domain.ValidationError{Field: "passengers", Msg: "at least one adult required"}
	}
	if req.Identity.UserID == nil && req.Identity.Phone == "" && strings.TrimSpace(req.Passengers[0].Phone) == "" {
		return domain.ValidationError{Field: "passengers", Msg: "first passenger phone required for guest booking"}
	}
	return nil
}

// wrapReserveErr turns a deadline hit into the retryable TimeoutError; any
// other error passes through.
func wrapReserveErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.TimeoutError{Op: "reservation", Err: err}
	}
	return err
}

func confirmationSMS(b models.Booking, t models.Trip, seats []int) string {
	seatList := joinSeats(append([]int(nil), seats...))
	return fmt.Sprintf("Booking %s: %s-%s %s, seats %s, total %s. Complete payment within 10 minutes.",
		b.Code[:8], t.RouteFrom, t.RouteTo, t.DepartureTime.Format("02 Jan 15:04"),
		seatList, utils.FormatRupiah(b.TotalAmount))
}
