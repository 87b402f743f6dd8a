package repositories

import (
	"database/sql"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain"
	"busline/internal/domain/models"
)

type StaffRepo struct {
	DB *sql.DB
}

func (r StaffRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// MarkOnTrip flips a staff member to ON_TRIP when a trip departs. Members on
// leave are left untouched.
func (r StaffRepo) MarkOnTrip(q intdb.Queryer, staffID int64) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`UPDATE staff SET status = 'ON_TRIP' WHERE id = ? AND status <> 'ON_LEAVE'`, staffID)
	if err != nil {
		return domain.InternalError{Msg: "mark staff on trip", Err: err}
	}
	return nil
}

// ActiveTripCount counts DEPARTED trips the staff member is still assigned
// to in their role.
func (r StaffRepo) ActiveTripCount(q intdb.Queryer, staffID int64, role models.StaffRole) (int, error) {
	if q == nil {
		q = r.db()
	}
	column := "driver_id"
	if role == models.RoleConductor {
		column = "conductor_id"
	}
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM trips WHERE `+column+` = ? AND status = 'DEPARTED'`, staffID).Scan(&n)
	if err != nil {
		return 0, domain.InternalError{Msg: "count active trips", Err: err}
	}
	return n, nil
}

// ResetAvailable returns a staff member to AVAILABLE. Guarded on ON_TRIP so
// leave status survives the sweep.
func (r StaffRepo) ResetAvailable(q intdb.Queryer, staffID int64) (bool, error) {
	if q == nil {
		q = r.db()
	}
	res, err := q.Exec(`UPDATE staff SET status = 'AVAILABLE' WHERE id = ? AND status = 'ON_TRIP'`, staffID)
	if err != nil {
		return false, domain.InternalError{Msg: "reset staff", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.InternalError{Msg: "reset staff", Err: err}
	}
	return n > 0, nil
}

// ListOnTripWithoutActiveTrip finds staff stuck in ON_TRIP with no DEPARTED
// trip matching their role, candidates for the sweep's staff reconciliation.
func (r StaffRepo) ListOnTripWithoutActiveTrip() ([]models.Staff, error) {
	rows, err := r.db().Query(`
		SELECT s.id, s.company_id, s.name, s.role, s.status
		FROM staff s
		WHERE s.status = 'ON_TRIP'
		  AND NOT EXISTS (
			SELECT 1 FROM trips t
			WHERE t.status = 'DEPARTED'
			  AND ((s.role = 'DRIVER' AND t.driver_id = s.id)
			    OR (s.role = 'CONDUCTOR' AND t.conductor_id = s.id))
		  )
		ORDER BY s.id ASC`)
	if err != nil {
		return nil, domain.InternalError{Msg: "list stuck staff", Err: err}
	}
	defer rows.Close()

	out := []models.Staff{}
	for rows.Next() {
		var s models.Staff
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Name, &s.Role, &s.Status); err != nil {
			return out, domain.InternalError{Msg: "scan staff", Err: err}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
