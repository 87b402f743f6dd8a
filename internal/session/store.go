package session

import (
	"database/sql"
	"time"

	intconfig "busline/internal/config"
	"busline/internal/domain"

	"github.com/google/uuid"
)

// Store resolves opaque session ids to phone numbers and expires entries
// past their TTL. It backs the "session-bound phone" identity of the
// booking coordinator.
type Store struct {
	DB  *sql.DB
	TTL time.Duration
}

func (s Store) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

func (s Store) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 30 * time.Minute
}

// Create opens a phone-bound session and returns its opaque id.
func (s Store) Create(phone string, now time.Time) (string, error) {
	if phone == "" {
		return "", domain.ValidationError{Field: "phone", Msg: "required"}
	}
	id := uuid.NewString()
	_, err := s.db().Exec(`INSERT INTO sessions (id, phone, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		id, phone, now, now.Add(s.ttl()))
	if err != nil {
		return "", domain.InternalError{Msg: "create session", Err: err}
	}
	return id, nil
}

// ResolvePhone returns the phone bound to a live session.
func (s Store) ResolvePhone(id string, now time.Time) (string, error) {
	var phone string
	err := s.db().QueryRow(`SELECT phone FROM sessions WHERE id = ? AND expires_at > ?`, id, now).Scan(&phone)
	if err == sql.ErrNoRows {
		return "", domain.NotFoundError{Resource: "session", Err: err}
	}
	if err != nil {
		return "", domain.InternalError{Msg: "resolve session", Err: err}
	}
	return phone, nil
}

// ExpireStale deletes sessions past their TTL and reports how many.
func (s Store) ExpireStale(now time.Time) (int64, error) {
	res, err := s.db().Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, domain.InternalError{Msg: "expire sessions", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.InternalError{Msg: "expire sessions", Err: err}
	}
	return n, nil
}
