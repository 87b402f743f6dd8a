package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain/models"
	"busline/internal/repositories"
	"busline/internal/utils"
)

const (
	// delayAfter: a SCHEDULED trip this far past departure was not caught in
	// time and is flagged DELAYED for manual handling.
	delayAfter = 30 * time.Minute
	// delayedGrace: a DELAYED trip departs automatically once this much time
	// has passed since the scheduled departure.
	delayedGrace = 60 * time.Minute
	// arrivalBuffer pads the estimated duration before auto-completing.
	arrivalBuffer = 2 * time.Hour
	// staleAfter: a trip that never left within a day is closed out.
	staleAfter = 24 * time.Hour
)

// Machine-readable transition reasons for audit entries.
const (
	ReasonDepartureOverdue   = "departure_overdue"
	ReasonDepartureReached   = "departure_time_reached"
	ReasonDelayGraceElapsed  = "delay_grace_elapsed"
	ReasonEstimatedArrival   = "estimated_arrival_elapsed"
	ReasonStaleNeverDeparted = "stale_never_departed"
)

// Transition is one decided lifecycle edge for a trip.
type Transition struct {
	To     models.TripStatus
	Reason string
	// StaleDecision marks the stale-24h rule: the final state is COMPLETED
	// when the trip has paid bookings and CANCELLED otherwise, decided
	// against storage at apply time.
	StaleDecision bool
}

// EvaluateTransition decides the next lifecycle edge for a trip at the given
// instant. Pure: all time comparisons use the caller-supplied now, which the
// sweep takes from the business clock. Terminal states absorb everything.
func EvaluateTransition(t models.Trip, now time.Time) (Transition, bool) {
	if t.Status.Terminal() {
		return Transition{}, false
	}
	sinceDeparture := now.Sub(t.DepartureTime)

	switch t.Status {
	case models.TripScheduled, models.TripBoarding:
		if sinceDeparture >= staleAfter {
			return Transition{To: models.TripCompleted, Reason: ReasonStaleNeverDeparted, StaleDecision: true}, true
		}
		if t.Status == models.TripScheduled && sinceDeparture >= delayAfter {
			return Transition{To: models.TripDelayed, Reason: ReasonDepartureOverdue}, true
		}
		if sinceDeparture >= 0 {
			return Transition{To: models.TripDeparted, Reason: ReasonDepartureReached}, true
		}
	case models.TripDelayed:
		if sinceDeparture >= delayedGrace {
			return Transition{To: models.TripDeparted, Reason: ReasonDelayGraceElapsed}, true
		}
	case models.TripDeparted:
		estimated := time.Duration(t.EstimatedDurationMin) * time.Minute
		if sinceDeparture >= estimated+arrivalBuffer {
			return Transition{To: models.TripCompleted, Reason: ReasonEstimatedArrival}, true
		}
	}
	return Transition{}, false
}

// LifecycleService advances trip status over time and owns the per-transition
// side effects (staff status, tracking resources, audit trail).
type LifecycleService struct {
	TripRepo     repositories.TripRepo
	BookingRepo  repositories.BookingRepo
	StaffRepo    repositories.StaffRepo
	TrackingRepo repositories.TrackingRepo
	AuditRepo    repositories.AuditRepo
	DB           *sql.DB
}

func (s LifecycleService) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

// SweepTrips evaluates every non-terminal trip once. Failures are isolated
// per trip: one broken row never stops the rest of the fleet.
func (s LifecycleService) SweepTrips(ctx context.Context, now time.Time) (delayed, departed, completed, cancelled int) {
	trips, err := s.TripRepo.ListNonTerminal()
	if err != nil {
		utils.LogError("", "lifecycle", "list", err)
		return
	}
	for _, trip := range trips {
		if ctx.Err() != nil {
			return
		}
		tr, ok := EvaluateTransition(trip, now)
		if !ok {
			continue
		}
		applied, err := s.Apply(trip, tr, now)
		if err != nil {
			utils.LogError("", "lifecycle", "apply", fmt.Errorf("trip %d: %w", trip.ID, err))
			continue
		}
		switch applied {
		case models.TripDelayed:
			delayed++
		case models.TripDeparted:
			departed++
		case models.TripCompleted:
			completed++
		case models.TripCancelled:
			cancelled++
		}
	}
	return
}

// Apply commits one transition atomically with its side effects. The status
// update is guarded on the observed previous status, so a concurrent or
// repeated pass applies nothing and returns empty.
func (s LifecycleService) Apply(trip models.Trip, tr Transition, now time.Time) (models.TripStatus, error) {
	tx, err := s.db().Begin()
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	to := tr.To
	if tr.StaleDecision {
		hasPaid, err := s.BookingRepo.HasPaidForTrip(tx, trip.ID)
		if err != nil {
			return "", err
		}
		if !hasPaid {
			to = models.TripCancelled
		}
	}

	applied, err := s.TripRepo.TransitionStatus(tx, trip.ID, trip.Status, to)
	if err != nil {
		return "", err
	}
	if !applied {
		// Someone already moved this trip; nothing to do.
		return "", nil
	}

	switch to {
	case models.TripDeparted:
		if err := s.departedEffects(tx, trip, now); err != nil {
			return "", err
		}
	case models.TripCompleted:
		if err := s.completedEffects(tx, trip, now); err != nil {
			return "", err
		}
	}

	if err := s.AuditRepo.Append(tx, models.AuditEntry{
		Actor:     models.ActorSystem,
		Action:    models.ActionTripTransition,
		TripID:    &trip.ID,
		CompanyID: &trip.CompanyID,
		Detail: map[string]any{
			"from":   string(trip.Status),
			"to":     string(to),
			"reason": tr.Reason,
		},
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return to, nil
}

func (s LifecycleService) departedEffects(q intdb.Queryer, trip models.Trip, now time.Time) error {
	if err := s.TripRepo.RecordDeparture(q, trip.ID, now); err != nil {
		return err
	}
	if trip.DriverID != nil {
		if err := s.StaffRepo.MarkOnTrip(q, *trip.DriverID); err != nil {
			return err
		}
	}
	if trip.ConductorID != nil {
		if err := s.StaffRepo.MarkOnTrip(q, *trip.ConductorID); err != nil {
			return err
		}
	}
	return nil
}

func (s LifecycleService) completedEffects(q intdb.Queryer, trip models.Trip, now time.Time) error {
	if err := s.TripRepo.RecordArrival(q, trip.ID, now); err != nil {
		return err
	}
	if err := s.TrackingRepo.Deactivate(q, trip.ID); err != nil {
		return err
	}
	// Staff go back to AVAILABLE only when no other departed trip still
	// claims them. This trip already left DEPARTED inside this transaction,
	// so it no longer counts.
	if err := s.releaseStaff(q, trip.DriverID, models.RoleDriver); err != nil {
		return err
	}
	return s.releaseStaff(q, trip.ConductorID, models.RoleConductor)
}

func (s LifecycleService) releaseStaff(q intdb.Queryer, staffID *int64, role models.StaffRole) error {
	if staffID == nil {
		return nil
	}
	active, err := s.StaffRepo.ActiveTripCount(q, *staffID, role)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	_, err = s.StaffRepo.ResetAvailable(q, *staffID)
	return err
}
