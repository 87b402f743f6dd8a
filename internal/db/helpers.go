package db

import "database/sql"

// Queryer is satisfied by *sql.DB and *sql.Tx so repositories can run both
// standalone and inside the coordinator's transaction. Pass nil to use the
// repository's own handle.
type Queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// NullID maps an optional numeric reference to its SQL value.
func NullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
