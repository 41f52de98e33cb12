package postgresbackend

import (
	"errors"

	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
)

var (
	// ErrNilDatabaseConnection is returned when a nil database connection is supplied.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")

	// ErrEmptyKind is returned when a mapping is registered for an empty entity kind.
	ErrEmptyKind = errors.New("entity kind must not be empty")

	// ErrEmptyTableName is returned when a mapping has an empty table name.
	ErrEmptyTableName = errors.New("empty table name supplied")

	// ErrEmptyKeyColumn is returned when a mapping has an empty key column.
	ErrEmptyKeyColumn = errors.New("empty key column supplied")

	// ErrUnknownKind is returned when no mapping is registered for an identity's kind.
	ErrUnknownKind = errors.New("no table mapping registered for entity kind")

	// ErrBuildingQueryFailed is returned when goqu fails to build a query.
	ErrBuildingQueryFailed = errors.New("building the query failed")

	// ErrEncodingValueFailed is returned when a collection value can't be encoded as an array.
	ErrEncodingValueFailed = errors.New("encoding the value failed")

	// ErrDecodingValueFailed is returned when a loaded column can't be decoded into the field type.
	ErrDecodingValueFailed = errors.New("decoding the value failed")

	// ErrQueryingFailed is returned when a SELECT fails.
	ErrQueryingFailed = errors.New("querying the entity failed")

	// ErrExecutingFailed is returned when an UPDATE or INSERT fails.
	ErrExecutingFailed = errors.New("executing the statement failed")
)

// TableMapping maps one entity kind to a table.
type TableMapping struct {
	Table     string
	KeyColumn string
	Schema    unitofwork.Schema

	// Columns maps field names to column names. Fields missing here use their name as column.
	Columns map[string]string
}

func (m TableMapping) column(field string) string {
	if column, ok := m.Columns[field]; ok && column != "" {
		return column
	}

	return field
}

// Logger interface for SQL query logging, operational metrics, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option defines a functional option for configuring Backend.
type Option func(*Backend) error

// WithMapping registers the table mapping for an entity kind.
func WithMapping(kind string, mapping TableMapping) Option {
	return func(b *Backend) error {
		if kind == "" {
			return ErrEmptyKind
		}

		if mapping.Table == "" {
			return ErrEmptyTableName
		}

		if mapping.KeyColumn == "" {
			return ErrEmptyKeyColumn
		}

		b.mappings[kind] = mapping

		return nil
	}
}

// WithLogger sets the logger for the Backend.
//
// Debug level: SQL statements with execution timing (development use)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(b *Backend) error {
		b.logger = logger
		return nil
	}
}
