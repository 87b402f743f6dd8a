package repositories

import (
	"database/sql"
	"time"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain"
	"busline/internal/domain/models"
)

type PaymentRepo struct {
	DB *sql.DB
}

func (r PaymentRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// CreatePending opens a payment attempt for a booking.
func (r PaymentRepo) CreatePending(q intdb.Queryer, bookingID int64, transactionID string, amount int64) (int64, error) {
	if q == nil {
		q = r.db()
	}
	res, err := q.Exec(`
		INSERT INTO payments (booking_id, status, transaction_id, amount)
		VALUES (?, 'PENDING', ?, ?)`, bookingID, transactionID, amount)
	if err != nil {
		return 0, domain.InternalError{Msg: "create payment", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.InternalError{Msg: "create payment", Err: err}
	}
	return id, nil
}

// UpdateAmount refreshes the expected amount of an open payment after an
// update-in-place reservation changed the total.
func (r PaymentRepo) UpdateAmount(q intdb.Queryer, bookingID int64, amount int64) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`UPDATE payments SET amount = ? WHERE booking_id = ? AND status = 'PENDING'`, amount, bookingID)
	if err != nil {
		return domain.InternalError{Msg: "update payment amount", Err: err}
	}
	return nil
}

// ListPendingOlderThan returns payment attempts past the timeout cutoff.
func (r PaymentRepo) ListPendingOlderThan(cutoff time.Time) ([]models.Payment, error) {
	rows, err := r.db().Query(`
		SELECT id, booking_id, status, transaction_id, amount, created_at
		FROM payments
		WHERE status = 'PENDING' AND created_at < ?
		ORDER BY id ASC`, cutoff)
	if err != nil {
		return nil, domain.InternalError{Msg: "list pending payments", Err: err}
	}
	defer rows.Close()

	out := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Status, &p.TransactionID, &p.Amount, &p.CreatedAt); err != nil {
			return out, domain.InternalError{Msg: "scan payment", Err: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkTimeout expires a pending payment. Guarded on PENDING: a second sweep
// pass matches zero rows.
func (r PaymentRepo) MarkTimeout(q intdb.Queryer, id int64) (bool, error) {
	if q == nil {
		q = r.db()
	}
	res, err := q.Exec(`UPDATE payments SET status = 'TIMEOUT' WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return false, domain.InternalError{Msg: "mark payment timeout", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.InternalError{Msg: "mark payment timeout", Err: err}
	}
	return n > 0, nil
}

// CancelForBooking closes any open payment of a cancelled booking.
func (r PaymentRepo) CancelForBooking(q intdb.Queryer, bookingID int64) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`UPDATE payments SET status = 'CANCELLED' WHERE booking_id = ? AND status = 'PENDING'`, bookingID)
	if err != nil {
		return domain.InternalError{Msg: "cancel payment", Err: err}
	}
	return nil
}
