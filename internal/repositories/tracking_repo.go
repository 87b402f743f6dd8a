package repositories

import (
	"database/sql"
	"time"

	intconfig "busline/internal/config"
	intdb "busline/internal/db"
	"busline/internal/domain"
)

type TrackingRepo struct {
	DB *sql.DB
}

func (r TrackingRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// Deactivate releases a completed trip's live-tracking resources: the feed
// is switched off and the access token invalidated.
func (r TrackingRepo) Deactivate(q intdb.Queryer, tripID int64) error {
	if q == nil {
		q = r.db()
	}
	_, err := q.Exec(`UPDATE trips SET tracking_active = 0, tracking_token = NULL WHERE id = ?`, tripID)
	if err != nil {
		return domain.InternalError{Msg: "deactivate tracking", Err: err}
	}
	return nil
}

// PurgeOldPositions drops fine-grained telemetry older than the cutoff for
// trips already in a terminal state.
func (r TrackingRepo) PurgeOldPositions(cutoff time.Time) (int64, error) {
	res, err := r.db().Exec(`
		DELETE tp FROM tracking_positions tp
		JOIN trips t ON t.id = tp.trip_id
		WHERE t.status IN ('COMPLETED','CANCELLED') AND tp.recorded_at < ?`, cutoff)
	if err != nil {
		return 0, domain.InternalError{Msg: "purge tracking positions", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.InternalError{Msg: "purge tracking positions", Err: err}
	}
	return n, nil
}
