package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	ingest "able-iot-cloud/internal/ingest/domain"
)

// persistence wraps a driver error into the domain taxonomy, preserving
// the SQLSTATE when the server reported one.
func persistence(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &ingest.PersistenceError{Op: op, Code: pgErr.Code, Err: err}
	}
	return &ingest.PersistenceError{Op: op, Err: err}
}
