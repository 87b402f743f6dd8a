package repositories

import (
	"database/sql"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain"
	"busline/internal/domain/models"
)

type PassengerRepo struct {
	DB *sql.DB
}

func (r PassengerRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// SeatsHeld returns the seat numbers currently occupied on a trip by
// passengers of non-cancelled bookings. excludeBookingID removes the booking
// being updated from the picture so update-in-place never conflicts with
// itself; pass 0 to exclude nothing.
func (r PassengerRepo) SeatsHeld(q intdb.Queryer, tripID, excludeBookingID int64) ([]int, error) {
	if q == nil {
		q = r.db()
	}
	rows, err := q.Query(`
		SELECT p.seat_number
		FROM passengers p
		JOIN bookings b ON b.id = p.booking_id
		WHERE b.trip_id = ? AND b.status <> 'CANCELLED' AND b.id <> ?
		ORDER BY p.seat_number ASC`, tripID, excludeBookingID)
	if err != nil {
		return nil, domain.InternalError{Msg: "list held seats", Err: err}
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var seat int
		if err := rows.Scan(&seat); err != nil {
			return out, domain.InternalError{Msg: "scan seat", Err: err}
		}
		out = append(out, seat)
	}
	return out, rows.Err()
}

// ReplaceForBooking deletes and recreates the booking's passenger rows.
// Rows are never edited in place during a seat change.
func (r PassengerRepo) ReplaceForBooking(q intdb.Queryer, bookingID int64, passengers []models.Passenger) error {
	if q == nil {
		q = r.db()
	}
	if _, err := q.Exec(`DELETE FROM passengers WHERE booking_id = ?`, bookingID); err != nil {
		return domain.InternalError{Msg: "clear passengers", Err: err}
	}
	for _, p := range passengers {
		_, err := q.Exec(`
			INSERT INTO passengers (booking_id, name, seat_number, phone, id_number, is_child)
			VALUES (?, ?, ?, ?, ?, ?)`,
			bookingID, p.Name, p.SeatNumber, p.Phone, p.IDNumber, p.IsChild)
		if err != nil {
			return domain.InternalError{Msg: "insert passenger", Err: err}
		}
	}
	return nil
}

// ListByBooking returns the booking's passengers ordered by seat.
func (r PassengerRepo) ListByBooking(q intdb.Queryer, bookingID int64) ([]models.Passenger, error) {
	if q == nil {
		q = r.db()
	}
	rows, err := q.Query(`
		SELECT id, booking_id, name, seat_number, phone, id_number, is_child
		FROM passengers WHERE booking_id = ? ORDER BY seat_number ASC`, bookingID)
	if err != nil {
		return nil, domain.InternalError{Msg: "list passengers", Err: err}
	}
	defer rows.Close()

	out := []models.Passenger{}
	for rows.Next() {
		var p models.Passenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Name, &p.SeatNumber, &p.Phone, &p.IDNumber, &p.IsChild); err != nil {
			return out, domain.InternalError{Msg: "scan passenger", Err: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListForManifest returns the boarding list: passengers of paid bookings,
// ordered by seat.
func (r PassengerRepo) ListForManifest(tripID int64) ([]models.Passenger, error) {
	rows, err := r.db().Query(`
		SELECT p.id, p.booking_id, p.name, p.seat_number, p.phone, p.id_number, p.is_child
		FROM passengers p
		JOIN bookings b ON b.id = p.booking_id
		WHERE b.trip_id = ? AND b.status = 'PAID'
		ORDER BY p.seat_number ASC`, tripID)
	if err != nil {
		return nil, domain.InternalError{Msg: "list manifest passengers", Err: err}
	}
	defer rows.Close()

	out := []models.Passenger{}
	for rows.Next() {
		var p models.Passenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Name, &p.SeatNumber, &p.Phone, &p.IDNumber, &p.IsChild); err != nil {
			return out, domain.InternalError{Msg: "scan passenger", Err: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
