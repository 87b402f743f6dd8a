package repositories

import (
	"database/sql"
	"time"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain"
	"busline/internal/domain/models"
)

type BookingRepo struct {
	DB *sql.DB
}

func (r BookingRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const bookingColumns = `id, code, trip_id, user_id, phone, status, passenger_count,
		total_amount, company_share, platform_fee, created_at`

func scanBooking(row interface{ Scan(...any) error }) (models.Booking, error) {
	var (
		b      models.Booking
		userID sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.Code, &b.TripID, &userID, &b.Phone, &b.Status,
		&b.PassengerCount, &b.TotalAmount, &b.CompanyShare, &b.PlatformFee, &b.CreatedAt)
	if err != nil {
		return b, err
	}
	if userID.Valid {
		b.UserID = &userID.Int64
	}
	return b, nil
}

// GetPendingForCustomer finds the customer's open booking on a trip, if any.
// A customer is keyed by account id when authenticated, by phone otherwise;
// at most one PENDING booking per customer per trip exists at a time.
func (r BookingRepo) GetPendingForCustomer(q intdb.Queryer, tripID int64, userID *int64, phone string) (models.Booking, bool, error) {
	if q == nil {
		q = r.db()
	}
	var row *sql.Row
	if userID != nil {
		row = q.QueryRow(`
			SELECT `+bookingColumns+` FROM bookings
			WHERE trip_id = ? AND user_id = ? AND status = 'PENDING'
			ORDER BY id DESC LIMIT 1`, tripID, *userID)
	} else {
		row = q.QueryRow(`
			SELECT `+bookingColumns+` FROM bookings
			WHERE trip_id = ? AND user_id IS NULL AND phone = ? AND status = 'PENDING'
			ORDER BY id DESC LIMIT 1`, tripID, phone)
	}
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return b, false, nil
	}
	if err != nil {
		return b, false, domain.InternalError{Msg: "load pending booking", Err: err}
	}
	return b, true, nil
}

// Insert writes a new booking row and returns its id.
func (r BookingRepo) Insert(q intdb.Queryer, b models.Booking) (int64, error) {
	if q == nil {
		q = r.db()
	}
	res, err := q.Exec(`
		INSERT INTO bookings (code, trip_id, user_id, phone, status, passenger_count,
			total_amount, company_share, platform_fee)
		VALUES (?, ?, ?, ?, 'PENDING', ?, ?, ?, ?)`,
		b.Code, b.TripID, intdb.NullID(b.UserID), b.Phone, b.PassengerCount,
		b.TotalAmount, b.CompanyShare, b.PlatformFee)
	if err != nil {
		return 0, domain.InternalError{Msg: "insert booking", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.InternalError{Msg: "insert booking", Err: err}
	}
	return id, nil
}

// UpdateReservation rewrites the mutable reservation fields of a PENDING
// booking during update-in-place. The caller has already loaded the booking
// as PENDING under the ledger lock, so the affected-row count is not
// consulted: MySQL reports zero rows for an update writing identical values,
// which is exactly what an unchanged resubmission does.
func (r BookingRepo) UpdateReservation(q intdb.Queryer, id int64, passengerCount int, total, companyShare, platformFee int64) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`
		UPDATE bookings SET passenger_count = ?, total_amount = ?, company_share = ?, platform_fee = ?
		WHERE id = ? AND status = 'PENDING'`,
		passengerCount, total, companyShare, platformFee, id)
	if err != nil {
		return domain.InternalError{Msg: "update booking", Err: err}
	}
	return nil
}

// Cancel moves a booking to CANCELLED. Guarded on PENDING so the status
// stays monotonic and a redundant sweep pass is a no-op.
func (r BookingRepo) Cancel(q intdb.Queryer, id int64) (bool, error) {
	if q == nil {
		q = r.db()
	}
	res, err := q.Exec(`UPDATE bookings SET status = 'CANCELLED' WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return false, domain.InternalError{Msg: "cancel booking", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.InternalError{Msg: "cancel booking", Err: err}
	}
	return n > 0, nil
}

// GetByID loads one booking.
func (r BookingRepo) GetByID(q intdb.Queryer, id int64) (models.Booking, error) {
	if q == nil {
		q = r.db()
	}
	b, err := scanBooking(q.QueryRow(`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return b, domain.NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return b, domain.InternalError{Msg: "load booking", Err: err}
	}
	return b, nil
}

// ListByUser returns a user's bookings, optionally filtered by status.
func (r BookingRepo) ListByUser(userID int64, status models.BookingStatus) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db().Query(query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "list bookings", Err: err}
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan booking", Err: err}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListStalePending returns PENDING bookings created before the cutoff,
// candidates for reclamation by the sweep.
func (r BookingRepo) ListStalePending(cutoff time.Time) ([]models.Booking, error) {
	rows, err := r.db().Query(`
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'PENDING' AND created_at < ?
		ORDER BY id ASC`, cutoff)
	if err != nil {
		return nil, domain.InternalError{Msg: "list stale bookings", Err: err}
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan booking", Err: err}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// HasPaidForTrip reports whether any paid booking exists on the trip. Used
// by the stale-trip rule to choose COMPLETED over CANCELLED.
func (r BookingRepo) HasPaidForTrip(q intdb.Queryer, tripID int64) (bool, error) {
	if q == nil {
		q = r.db()
	}
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM bookings WHERE trip_id = ? AND status = 'PAID'`, tripID).Scan(&n)
	if err != nil {
		return false, domain.InternalError{Msg: "count paid bookings", Err: err}
	}
	return n > 0, nil
}
