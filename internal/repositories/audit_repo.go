package repositories

import (
	"database/sql"
	"encoding/json"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain"
	"busline/internal/domain/models"
)

// AuditRepo is an append-only sink. Entries are never mutated, deleted or
// read back by the core.
type AuditRepo struct {
	DB *sql.DB
}

func (r AuditRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r AuditRepo) Append(q intdb.Queryer, e models.AuditEntry) error {
	if q == nil {
		q = r.db()
	}
	var detail any
	if len(e.Detail) > 0 {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return domain.InternalError{Msg: "encode audit detail", Err: err}
		}
		detail = string(raw)
	}
	_, err := q.Exec(`
		INSERT INTO audit_logs (actor, action, trip_id, company_id, detail)
		VALUES (?, ?, ?, ?, ?)`,
		e.Actor, e.Action, intdb.NullID(e.TripID), intdb.NullID(e.CompanyID), detail)
	if err != nil {
		return domain.InternalError{Msg: "append audit entry", Err: err}
	}
	return nil
}
