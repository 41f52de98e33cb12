package postgresbackend

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateClassConnection      = "08"
)

// IsRetryable reports whether err is a PostgreSQL error that may succeed when the whole
// Unit of Work is run again: serialization failures, deadlocks and connection exceptions.
// Both the pgx and the lib/pq error types are recognized.
func IsRetryable(err error) bool {
	code := ""

	var pgErr *pgconn.PgError
	var pqErr *pq.Error

	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		return false
	}

	return code == sqlStateSerializationFailure ||
		code == sqlStateDeadlockDetected ||
		strings.HasPrefix(code, sqlStateClassConnection)
}
