package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"busline/internal/clock"
	"busline/internal/domain"
	"busline/internal/domain/models"
	"busline/internal/notify"
	"busline/internal/repositories"
	"busline/internal/session"
	"busline/internal/utils"

	intconfig "busline/internal/config"
)

const (
	// paymentTimeout: a payment attempt pending this long is abandoned.
	paymentTimeout = 5 * time.Minute
	// bookingTTL: a pending booking this old is reclaimed whether or not a
	// payment attempt exists.
	bookingTTL = 10 * time.Minute
	// retentionDays bounds how long fine-grained telemetry of finished
	// trips is kept.
	retentionDays = 7
)

// TripTransitions aggregates lifecycle counts of one sweep.
type TripTransitions struct {
	Delayed   int `json:"delayed"`
	Departed  int `json:"departed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// Report is the aggregate outcome of one reconciliation pass.
type Report struct {
	SessionsExpired   int             `json:"sessions_expired"`
	PaymentsTimedOut  int             `json:"payments_timed_out"`
	BookingsCancelled int             `json:"bookings_cancelled"`
	Trips             TripTransitions `json:"trips_transitioned"`
	StaffReset        int             `json:"staff_reset"`
	RecordsPurged     int64           `json:"records_purged"`
}

// ReconcileService is the periodic sweep: it expires stale sessions and
// reservations, advances the trip lifecycle and resets dependent state.
// It is a function of (now, storage) with no scheduling of its own, so any
// timer, queue consumer or test harness can drive it, redundantly if need
// be: a second immediate run changes nothing.
type ReconcileService struct {
	TripRepo     repositories.TripRepo
	BookingRepo  repositories.BookingRepo
	PaymentRepo  repositories.PaymentRepo
	StaffRepo    repositories.StaffRepo
	TrackingRepo repositories.TrackingRepo
	AuditRepo    repositories.AuditRepo
	Sessions     session.Store
	Lifecycle    LifecycleService
	Notifier     notify.Notifier
	DB           *sql.DB
}

func (s ReconcileService) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

// RunSweep executes all reconciliation steps. Steps are independent and
// failure-isolated: an error on one entity is logged and skipped, the sweep
// always proceeds and reports what it did manage.
func (s ReconcileService) RunSweep(ctx context.Context, now time.Time) Report {
	var report Report

	if n, err := s.Sessions.ExpireStale(now); err != nil {
		utils.LogError("", "reconcile", "sessions", err)
	} else {
		report.SessionsExpired = int(n)
	}

	s.timeoutPayments(ctx, now, &report)
	s.expireStaleBookings(ctx, now, &report)

	report.Trips.Delayed, report.Trips.Departed, report.Trips.Completed, report.Trips.Cancelled =
		s.Lifecycle.SweepTrips(ctx, now)

	s.resetStuckStaff(ctx, &report)

	if n, err := s.TrackingRepo.PurgeOldPositions(clock.CutoffDays(now, retentionDays)); err != nil {
		utils.LogError("", "reconcile", "purge", err)
	} else {
		report.RecordsPurged = n
	}

	utils.LogEvent("", "reconcile", "sweep", fmt.Sprintf(
		"sessions=%d payments=%d bookings=%d trips=%+v staff=%d purged=%d",
		report.SessionsExpired, report.PaymentsTimedOut, report.BookingsCancelled,
		report.Trips, report.StaffReset, report.RecordsPurged))
	return report
}

func (s ReconcileService) timeoutPayments(ctx context.Context, now time.Time, report *Report) {
	payments, err := s.PaymentRepo.ListPendingOlderThan(now.Add(-paymentTimeout))
	if err != nil {
		utils.LogError("", "reconcile", "payments", err)
		return
	}
	for _, p := range payments {
		if ctx.Err() != nil {
			return
		}
		booking, err := s.BookingRepo.GetByID(nil, p.BookingID)
		if err != nil {
			utils.LogError("", "reconcile", "payments", fmt.Errorf("payment %d: %w", p.ID, err))
			continue
		}
		out, err := s.reclaim(ctx, booking, p.ID, models.ActionPaymentTimeout, map[string]any{
			"payment_id":     p.ID,
			"transaction_id": p.TransactionID,
		})
		if err != nil {
			utils.LogError("", "reconcile", "payments", fmt.Errorf("payment %d: %w", p.ID, err))
			continue
		}
		if out.paymentTimedOut {
			report.PaymentsTimedOut++
		}
		if out.bookingCancelled {
			report.BookingsCancelled++
			s.Notifier.SendSMS(booking.Phone, fmt.Sprintf(
				"Booking %s was cancelled: payment not received in time. Seats have been released.",
				booking.Code[:8]))
		}
	}
}

func (s ReconcileService) expireStaleBookings(ctx context.Context, now time.Time, report *Report) {
	bookings, err := s.BookingRepo.ListStalePending(now.Add(-bookingTTL))
	if err != nil {
		utils.LogError("", "reconcile", "bookings", err)
		return
	}
	for _, b := range bookings {
		if ctx.Err() != nil {
			return
		}
		out, err := s.reclaim(ctx, b, 0, models.ActionBookingExpired, map[string]any{
			"created_at": b.CreatedAt,
		})
		if err != nil {
			utils.LogError("", "reconcile", "bookings", fmt.Errorf("booking %d: %w", b.ID, err))
			continue
		}
		if out.bookingCancelled {
			report.BookingsCancelled++
		}
	}
}

// reclaimOutcome reports what one reclaim actually committed.
type reclaimOutcome struct {
	paymentTimedOut  bool
	bookingCancelled bool
}

// reclaim cancels one booking and returns its seats to the ledger as one
// atomic unit under the trip's ledger lock. A busy lock means a live
// reservation is touching the trip; the item is skipped and retried next
// sweep rather than waiting. Guarded updates make redundant sweeps no-ops:
// a zero outcome means somebody already processed the item.
func (s ReconcileService) reclaim(ctx context.Context, b models.Booking, paymentID int64, action string, detail map[string]any) (reclaimOutcome, error) {
	var out reclaimOutcome

	conn, err := s.db().Conn(ctx)
	if err != nil {
		return out, err
	}
	defer conn.Close()

	if err := s.TripRepo.AcquireLedgerLock(ctx, conn, b.TripID); err != nil {
		if domain.IsConflict(err) {
			utils.LogEvent("", "reconcile", "reclaim",
				fmt.Sprintf("trip %d ledger busy, booking %d deferred", b.TripID, b.ID))
			return out, nil
		}
		return out, err
	}
	defer s.TripRepo.ReleaseLedgerLock(context.Background(), conn, b.TripID)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if paymentID > 0 {
		ok, err := s.PaymentRepo.MarkTimeout(tx, paymentID)
		if err != nil {
			return reclaimOutcome{}, err
		}
		if !ok {
			return reclaimOutcome{}, nil
		}
		out.paymentTimedOut = true
	}

	cancelled, err := s.BookingRepo.Cancel(tx, b.ID)
	if err != nil {
		return reclaimOutcome{}, err
	}
	if !cancelled {
		if paymentID == 0 {
			return reclaimOutcome{}, nil
		}
		// Payment expired but the booking was already closed elsewhere;
		// still commit the payment status.
	} else {
		if err := s.PaymentRepo.CancelForBooking(tx, b.ID); err != nil {
			return reclaimOutcome{}, err
		}
		if err := s.TripRepo.ApplySlotDelta(tx, b.TripID, -b.PassengerCount); err != nil {
			return reclaimOutcome{}, err
		}
	}
	out.bookingCancelled = cancelled

	seatsReleased := 0
	if cancelled {
		seatsReleased = b.PassengerCount
	}
	if err := s.AuditRepo.Append(tx, models.AuditEntry{
		Actor:  models.ActorSystem,
		Action: action,
		TripID: &b.TripID,
		Detail: mergeDetail(detail, map[string]any{
			"booking_id":     b.ID,
			"seats_released": seatsReleased,
		}),
	}); err != nil {
		return reclaimOutcome{}, err
	}

	if err := tx.Commit(); err != nil {
		return reclaimOutcome{}, err
	}
	committed = true
	return out, nil
}

func (s ReconcileService) resetStuckStaff(ctx context.Context, report *Report) {
	staff, err := s.StaffRepo.ListOnTripWithoutActiveTrip()
	if err != nil {
		utils.LogError("", "reconcile", "staff", err)
		return
	}
	for _, member := range staff {
		if ctx.Err() != nil {
			return
		}
		ok, err := s.StaffRepo.ResetAvailable(nil, member.ID)
		if err != nil {
			utils.LogError("", "reconcile", "staff", fmt.Errorf("staff %d: %w", member.ID, err))
			continue
		}
		if !ok {
			continue
		}
		if err := s.AuditRepo.Append(nil, models.AuditEntry{
			Actor:     models.ActorSystem,
			Action:    models.ActionStaffReset,
			CompanyID: &member.CompanyID,
			Detail:    map[string]any{"staff_id": member.ID, "role": string(member.Role)},
		}); err != nil {
			utils.LogError("", "reconcile", "staff", err)
		}
		report.StaffReset++
	}
}

func mergeDetail(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
