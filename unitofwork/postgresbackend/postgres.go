package postgresbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
	"github.com/AntonStoeckl/unitofwork-go/unitofwork/postgresbackend/internal/adapters"
)

const (
	logMsgBuildQueryFailed = "failed to build query"
	logMsgDBQueryFailed    = "database query execution failed"
	logMsgDBExecFailed     = "database execution failed"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgScanRowFailed    = "failed to scan database row"
	logMsgSQLExecuted      = "executed sql for: "
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrIdentity        = "identity"
	logAttrDurationMS      = "duration_ms"
	logActionLoad          = "load"
	logActionPersist       = "persist"
	logActionCreate        = "create"
	logActionDelete        = "delete"
	dialectPostgres        = "postgres"
	castText               = "?::text"
)

type sqlQueryString = string

// Backend persists tracked entities into PostgreSQL tables.
type Backend struct {
	db       adapters.DBAdapter
	mappings map[string]TableMapping
	logger   Logger
}

// NewBackendFromPGXPool creates a new Backend using a pgx Pool with optional configuration.
func NewBackendFromPGXPool(db *pgxpool.Pool, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewPGXAdapter(db), options...)
}

// NewBackendFromSQLDB creates a new Backend using a sql.DB (lib/pq driver) with optional configuration.
func NewBackendFromSQLDB(db *sql.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLAdapter(db), options...)
}

// NewBackendFromSQLX creates a new Backend using a sqlx.DB with optional configuration.
func NewBackendFromSQLX(db *sqlx.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLXAdapter(db), options...)
}

func newBackend(db adapters.DBAdapter, options ...Option) (*Backend, error) {
	b := &Backend{
		db:       db,
		mappings: make(map[string]TableMapping),
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Persist updates exactly the supplied columns of the row with the identity's key.
// It fails with unitofwork.ErrNotFound if no row was affected.
func (b *Backend) Persist(ctx context.Context, id unitofwork.Identity, values unitofwork.FieldValues) error {
	mapping, err := b.mapping(id)
	if err != nil {
		return err
	}

	sqlQuery, buildErr := b.buildUpdateQuery(mapping, id, values)
	if buildErr != nil {
		b.logError(logMsgBuildQueryFailed, buildErr, logAttrIdentity, id.String())
		return buildErr
	}

	rowsAffected, execErr := b.execute(ctx, sqlQuery, logActionPersist)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", unitofwork.ErrNotFound, id)
	}

	return nil
}

// Create inserts a new row with the identity's key and the supplied columns.
func (b *Backend) Create(ctx context.Context, id unitofwork.Identity, values unitofwork.FieldValues) error {
	mapping, err := b.mapping(id)
	if err != nil {
		return err
	}

	sqlQuery, buildErr := b.buildInsertQuery(mapping, id, values)
	if buildErr != nil {
		b.logError(logMsgBuildQueryFailed, buildErr, logAttrIdentity, id.String())
		return buildErr
	}

	_, execErr := b.execute(ctx, sqlQuery, logActionCreate)

	return execErr
}

// Delete removes the row with the identity's key.
// It fails with unitofwork.ErrNotFound if no row was affected.
func (b *Backend) Delete(ctx context.Context, id unitofwork.Identity) error {
	mapping, err := b.mapping(id)
	if err != nil {
		return err
	}

	sqlQuery, buildErr := b.buildDeleteQuery(mapping, id)
	if buildErr != nil {
		b.logError(logMsgBuildQueryFailed, buildErr, logAttrIdentity, id.String())
		return buildErr
	}

	rowsAffected, execErr := b.execute(ctx, sqlQuery, logActionDelete)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", unitofwork.ErrNotFound, id)
	}

	return nil
}

// Load selects all mapped columns of the row with the identity's key.
// Array columns are decoded into the Go types declared by the schema.
func (b *Backend) Load(ctx context.Context, id unitofwork.Identity) (unitofwork.FieldValues, error) {
	mapping, err := b.mapping(id)
	if err != nil {
		return nil, err
	}

	sqlQuery, buildErr := b.buildSelectQuery(mapping, id)
	if buildErr != nil {
		b.logError(logMsgBuildQueryFailed, buildErr, logAttrIdentity, id.String())
		return nil, buildErr
	}

	start := time.Now()
	rows, queryErr := b.db.Query(ctx, sqlQuery)
	b.logQueryWithDuration(sqlQuery, logActionLoad, time.Since(start))

	if queryErr != nil {
		b.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingFailed, queryErr)
	}
	defer b.closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return nil, errors.Join(ErrQueryingFailed, rowsErr)
		}

		return nil, fmt.Errorf("%w: %s", unitofwork.ErrNotFound, id)
	}

	fields := mapping.Schema.Fields()
	dest := scanDestinations(fields)

	if scanErr := rows.Scan(dest...); scanErr != nil {
		b.logError(logMsgScanRowFailed, scanErr, logAttrIdentity, id.String())
		return nil, errors.Join(ErrQueryingFailed, scanErr)
	}

	return decodeRow(fields, dest)
}

func (b *Backend) mapping(id unitofwork.Identity) (TableMapping, error) {
	mapping, ok := b.mappings[id.Kind]
	if !ok {
		return TableMapping{}, fmt.Errorf("%w: %s", ErrUnknownKind, id.Kind)
	}

	return mapping, nil
}

// execute runs a statement and returns the number of affected rows.
func (b *Backend) execute(ctx context.Context, sqlQuery sqlQueryString, action string) (int64, error) {
	start := time.Now()
	result, execErr := b.db.Exec(ctx, sqlQuery)
	b.logQueryWithDuration(sqlQuery, action, time.Since(start))

	if execErr != nil {
		b.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, errors.Join(ErrExecutingFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		return 0, errors.Join(ErrExecutingFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

func (b *Backend) buildUpdateQuery(
	mapping TableMapping,
	id unitofwork.Identity,
	values unitofwork.FieldValues,
) (sqlQueryString, error) {

	record, err := buildRecord(mapping, values)
	if err != nil {
		return "", err
	}

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(mapping.Table).
		Set(record).
		Where(goqu.Ex{mapping.KeyColumn: id.Key})

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (b *Backend) buildInsertQuery(
	mapping TableMapping,
	id unitofwork.Identity,
	values unitofwork.FieldValues,
) (sqlQueryString, error) {

	record, err := buildRecord(mapping, values)
	if err != nil {
		return "", err
	}

	record[mapping.KeyColumn] = id.Key

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(mapping.Table).
		Rows(record)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (b *Backend) buildDeleteQuery(mapping TableMapping, id unitofwork.Identity) (sqlQueryString, error) {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(mapping.Table).
		Where(goqu.Ex{mapping.KeyColumn: id.Key})

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (b *Backend) buildSelectQuery(mapping TableMapping, id unitofwork.Identity) (sqlQueryString, error) {
	columns := make([]any, 0, mapping.Schema.Len())

	for _, field := range mapping.Schema.Fields() {
		column := mapping.column(field.Name())

		if field.Kind() == unitofwork.CollectionField {
			// arrays are read in their text form, which lib/pq decodes the same way for every adapter
			columns = append(columns, goqu.L(castText, goqu.I(column)).As(column))
			continue
		}

		columns = append(columns, goqu.I(column))
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(mapping.Table).
		Select(columns...).
		Where(goqu.Ex{mapping.KeyColumn: id.Key}).
		Limit(1)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildRecord maps field values to columns, encoding collections as array literals.
func buildRecord(mapping TableMapping, values unitofwork.FieldValues) (goqu.Record, error) {
	record := make(goqu.Record, len(values))

	for name, value := range values {
		field, ok := mapping.Schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", unitofwork.ErrUnknownField, name)
		}

		if field.Kind() == unitofwork.CollectionField {
			encoded, err := encodeArray(value)
			if err != nil {
				return nil, errors.Join(ErrEncodingValueFailed, fmt.Errorf("field %s: %w", name, err))
			}

			value = encoded
		}

		record[mapping.column(name)] = value
	}

	return record, nil
}

// encodeArray renders a slice as a PostgreSQL array literal, nil slices become NULL.
func encodeArray(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	encoded, err := pq.Array(value).Value()
	if err != nil {
		return nil, err
	}

	if bytes, ok := encoded.([]byte); ok {
		return string(bytes), nil
	}

	return encoded, nil
}

// scanDestinations allocates one scan target per field: **T for scalars, so NULL scans into nil,
// and a sql.NullString for the text form of collections.
func scanDestinations(fields []unitofwork.Field) []any {
	dest := make([]any, len(fields))

	for i, field := range fields {
		if field.Kind() == unitofwork.CollectionField {
			dest[i] = new(sql.NullString)
			continue
		}

		dest[i] = reflect.New(reflect.PointerTo(field.Type())).Interface()
	}

	return dest
}

func decodeRow(fields []unitofwork.Field, dest []any) (unitofwork.FieldValues, error) {
	values := make(unitofwork.FieldValues, len(fields))

	for i, field := range fields {
		if field.Kind() == unitofwork.CollectionField {
			decoded, err := decodeArray(field, dest[i].(*sql.NullString))
			if err != nil {
				return nil, errors.Join(ErrDecodingValueFailed, fmt.Errorf("field %s: %w", field.Name(), err))
			}

			values[field.Name()] = decoded
			continue
		}

		ptr := reflect.ValueOf(dest[i]).Elem() // *T
		if ptr.IsNil() {
			values[field.Name()] = reflect.Zero(field.Type()).Interface()
			continue
		}

		values[field.Name()] = ptr.Elem().Interface()
	}

	return values, nil
}

func decodeArray(field unitofwork.Field, text *sql.NullString) (any, error) {
	target := reflect.New(field.Type()) // *[]T

	if text.Valid {
		if err := pq.Array(target.Interface()).Scan(text.String); err != nil {
			return nil, err
		}
	}

	return target.Elem().Interface(), nil
}

// closeRows safely closes database rows and logs any errors.
func (b *Backend) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if b.logger != nil {
			b.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (b *Backend) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if b.logger != nil {
		b.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logError logs error information at the error level if the logger is configured.
func (b *Backend) logError(message string, err error, args ...any) {
	if b.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		b.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
