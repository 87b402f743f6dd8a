package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain"
	"busline/internal/domain/models"
)

type TripRepo struct {
	DB *sql.DB
}

func (r TripRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func ledgerLockKey(tripID int64) string {
	return fmt.Sprintf("trip_ledger:%d", tripID)
}

// AcquireLedgerLock takes the trip's exclusive ledger lock on a dedicated
// connection. Timeout 0 makes the acquisition non-blocking: a busy lock
// returns ConflictError immediately instead of queueing behind the holder.
// The lock is session-scoped, so it must be released on the same connection
// after the surrounding transaction commits.
func (r TripRepo) AcquireLedgerLock(ctx context.Context, conn *sql.Conn, tripID int64) error {
	var got sql.NullInt64
	err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 0)`, ledgerLockKey(tripID)).Scan(&got)
	if err != nil {
		if ctx.Err() != nil {
			return domain.TimeoutError{Op: "ledger lock", Err: err}
		}
		return domain.InternalError{Msg: "acquire ledger lock", Err: err}
	}
	if !got.Valid || got.Int64 != 1 {
		return domain.ConflictError{Resource: "trip ledger", Msg: "another reservation is in progress, retry"}
	}
	return nil
}

// ReleaseLedgerLock drops the named lock. Best-effort: the lock dies with
// the connection anyway.
func (r TripRepo) ReleaseLedgerLock(ctx context.Context, conn *sql.Conn, tripID int64) {
	var released sql.NullInt64
	_ = conn.QueryRowContext(ctx, `SELECT RELEASE_LOCK(?)`, ledgerLockKey(tripID)).Scan(&released)
}

const tripColumns = `t.id, t.company_id, t.route_from, t.route_to, t.departure_time,
		t.estimated_duration_min, t.total_slots, t.available_slots, t.price_per_seat,
		t.status, t.booking_halted, t.halt_reason, t.halt_override, t.report_generated,
		t.driver_id, t.conductor_id, t.actual_departure_time, t.actual_arrival_time,
		t.tracking_active, COALESCE(t.tracking_token, ''),
		c.commission_percent, c.disable_auto_halt`

func scanTrip(row interface{ Scan(...any) error }) (models.Trip, error) {
	var (
		t                    models.Trip
		driverID, condID     sql.NullInt64
		actualDep, actualArr sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.CompanyID, &t.RouteFrom, &t.RouteTo, &t.DepartureTime,
		&t.EstimatedDurationMin, &t.TotalSlots, &t.AvailableSlots, &t.PricePerSeat,
		&t.Status, &t.BookingHalted, &t.HaltReason, &t.HaltOverride, &t.ReportGenerated,
		&driverID, &condID, &actualDep, &actualArr,
		&t.TrackingActive, &t.TrackingToken,
		&t.CommissionPercent, &t.CompanyAutoHaltOff,
	)
	if err != nil {
		return t, err
	}
	if driverID.Valid {
		t.DriverID = &driverID.Int64
	}
	if condID.Valid {
		t.ConductorID = &condID.Int64
	}
	if actualDep.Valid {
		v := actualDep.Time
		t.ActualDepartureTime = &v
	}
	if actualArr.Valid {
		v := actualArr.Time
		t.ActualArrivalTime = &v
	}
	return t, nil
}

// GetByID loads a trip with its company's commission and auto-halt policy.
func (r TripRepo) GetByID(q intdb.Queryer, id int64) (models.Trip, error) {
	if q == nil {
		q = r.db()
	}
	row := q.QueryRow(`
		SELECT `+tripColumns+`
		FROM trips t
		JOIN companies c ON c.id = t.company_id
		WHERE t.id = ?`, id)
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return t, domain.NotFoundError{Resource: "trip", Err: err}
	}
	if err != nil {
		return t, domain.InternalError{Msg: "load trip", Err: err}
	}
	return t, nil
}

// ApplySlotDelta moves the available-seat counter. A positive delta reserves
// seats, a negative delta releases them. Caller must hold the ledger lock.
func (r TripRepo) ApplySlotDelta(q intdb.Queryer, tripID int64, delta int) error {
	if q == nil {
		q = r.db()
	}
	res, err := q.Exec(`
		UPDATE trips SET available_slots = available_slots - ?
		WHERE id = ? AND available_slots - ? BETWEEN 0 AND total_slots`,
		delta, tripID, delta)
	if err != nil {
		return domain.InternalError{Msg: "apply slot delta", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.InternalError{Msg: "apply slot delta", Err: err}
	}
	if n == 0 && delta != 0 {
		return domain.ConflictError{Resource: "trip ledger", Msg: "slot counter out of range"}
	}
	return nil
}

// SetHalt flags the trip halted with a reason.
func (r TripRepo) SetHalt(q intdb.Queryer, tripID int64, reason models.HaltReason) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`UPDATE trips SET booking_halted = 1, halt_reason = ? WHERE id = ?`,
		string(reason), tripID)
	if err != nil {
		return domain.InternalError{Msg: "set halt", Err: err}
	}
	return nil
}

// MarkSoldOut records the manifest flag and clears halt overrides; a
// sold-out trip has no meaningful resume state.
func (r TripRepo) MarkSoldOut(q intdb.Queryer, tripID int64) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`
		UPDATE trips SET report_generated = 1, halt_override = 'NONE'
		WHERE id = ?`, tripID)
	if err != nil {
		return domain.InternalError{Msg: "mark sold out", Err: err}
	}
	return nil
}

// TransitionStatus applies a guarded status change. The WHERE clause keys on
// the expected previous status, so re-running a sweep can never double-apply
// a transition: the second attempt matches zero rows.
func (r TripRepo) TransitionStatus(q intdb.Queryer, tripID int64, from, to models.TripStatus) (bool, error) {
	if q == nil {
		q = r.db()
	}
	res, err := q.Exec(`UPDATE trips SET status = ? WHERE id = ? AND status = ?`,
		string(to), tripID, string(from))
	if err != nil {
		return false, domain.InternalError{Msg: "transition status", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.InternalError{Msg: "transition status", Err: err}
	}
	return n > 0, nil
}

// RecordDeparture stamps the actual departure and halts further booking.
func (r TripRepo) RecordDeparture(q intdb.Queryer, tripID int64, at time.Time) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`
		UPDATE trips SET booking_halted = 1, halt_reason = ?, actual_departure_time = ?
		WHERE id = ?`, string(models.HaltDeparted), at, tripID)
	if err != nil {
		return domain.InternalError{Msg: "record departure", Err: err}
	}
	return nil
}

// RecordArrival stamps the actual arrival time.
func (r TripRepo) RecordArrival(q intdb.Queryer, tripID int64, at time.Time) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`UPDATE trips SET actual_arrival_time = ? WHERE id = ?`, at, tripID)
	if err != nil {
		return domain.InternalError{Msg: "record arrival", Err: err}
	}
	return nil
}

// ListNonTerminal returns trips the lifecycle sweep still has to look at.
func (r TripRepo) ListNonTerminal() ([]models.Trip, error) {
	rows, err := r.db().Query(`
		SELECT ` + tripColumns + `
		FROM trips t
		JOIN companies c ON c.id = t.company_id
		WHERE t.status NOT IN ('COMPLETED','CANCELLED')
		ORDER BY t.id ASC`)
	if err != nil {
		return nil, domain.InternalError{Msg: "list non-terminal trips", Err: err}
	}
	defer rows.Close()

	out := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan trip", Err: err}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
