package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/unitofwork-go/testutil/postgresbackend/config"
	"github.com/AntonStoeckl/unitofwork-go/unitofwork/postgresbackend"
)

// Adapter type constants
const (
	TypePGXPool = "pgxpool"
	TypeSQLDB   = "sqldb"
	TypeSQLX    = "sqlx"
)

// AdapterTypeEnvVar optionally restricts the integration tests to one adapter.
const AdapterTypeEnvVar = "ADAPTER_TYPE"

// TestTable is the table the integration tests persist profiles into.
const TestTable = "test_table"

const createTestTable = `
CREATE TABLE IF NOT EXISTS test_table (
	profile_id INT PRIMARY KEY,
	profile    TEXT NOT NULL,
	num_evals  INT DEFAULT 0,
	cost       REAL[] DEFAULT '{}',
	kpis       TEXT[] DEFAULT '{}'
)`

// Wrapper abstracts over the connection types a Backend can be built from.
type Wrapper interface {
	Name() string
	Backend() *postgresbackend.Backend
	Close()
}

// PGXPoolWrapper wraps a pgxpool-based Backend.
type PGXPoolWrapper struct {
	pool    *pgxpool.Pool
	backend *postgresbackend.Backend
}

func (w *PGXPoolWrapper) Name() string                      { return TypePGXPool }
func (w *PGXPoolWrapper) Backend() *postgresbackend.Backend { return w.backend }
func (w *PGXPoolWrapper) Close()                            { w.pool.Close() }

// SQLDBWrapper wraps a sql.DB-based Backend.
type SQLDBWrapper struct {
	db      *sql.DB
	backend *postgresbackend.Backend
}

func (w *SQLDBWrapper) Name() string                      { return TypeSQLDB }
func (w *SQLDBWrapper) Backend() *postgresbackend.Backend { return w.backend }
func (w *SQLDBWrapper) Close()                            { _ = w.db.Close() }

// SQLXWrapper wraps a sqlx.DB-based Backend.
type SQLXWrapper struct {
	db      *sqlx.DB
	backend *postgresbackend.Backend
}

func (w *SQLXWrapper) Name() string                      { return TypeSQLX }
func (w *SQLXWrapper) Backend() *postgresbackend.Backend { return w.backend }
func (w *SQLXWrapper) Close()                            { _ = w.db.Close() }

// CreateWrappersWithTestConfig connects every selected adapter, creates the test table
// and registers Close with t.Cleanup. It skips the test without a configured database.
func CreateWrappersWithTestConfig(t testing.TB, options ...postgresbackend.Option) []Wrapper {
	t.Helper()

	dsn, ok := config.PostgresTestDSN()
	if !ok {
		t.Skipf("%s is not set, skipping postgres integration test", config.DSNEnvVar)
	}

	var types []string

	switch adapterType := strings.ToLower(os.Getenv(AdapterTypeEnvVar)); adapterType {
	case "":
		types = []string{TypePGXPool, TypeSQLDB, TypeSQLX}
	case TypePGXPool, TypeSQLDB, TypeSQLX:
		types = []string{adapterType}
	default:
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}

	wrappers := make([]Wrapper, 0, len(types))
	for _, adapterType := range types {
		wrapper := createWrapper(t, adapterType, dsn, options...)
		t.Cleanup(wrapper.Close)
		CreateTestTable(t, wrapper)
		wrappers = append(wrappers, wrapper)
	}

	return wrappers
}

func createWrapper(t testing.TB, adapterType string, dsn string, options ...postgresbackend.Option) Wrapper {
	switch adapterType {
	case TypePGXPool:
		poolConfig, err := config.PostgresPGXPoolTestConfig(dsn)
		require.NoError(t, err, "error configuring the DB pool in test setup")
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		backend, err := postgresbackend.NewBackendFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the backend in test setup")

		return &PGXPoolWrapper{pool: pool, backend: backend}

	case TypeSQLDB:
		db, err := config.PostgresSQLDBTestConfig(dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		backend, err := postgresbackend.NewBackendFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the backend in test setup")

		return &SQLDBWrapper{db: db, backend: backend}

	default:
		db, err := config.PostgresSQLXTestConfig(dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		backend, err := postgresbackend.NewBackendFromSQLX(db, options...)
		require.NoError(t, err, "error creating the backend in test setup")

		return &SQLXWrapper{db: db, backend: backend}
	}
}

// CreateTestTable creates the test table if it doesn't exist yet.
func CreateTestTable(t testing.TB, wrapper Wrapper) {
	require.NoError(t, exec(wrapper, createTestTable), "error creating the test table")
}

// CleanUp empties the test table.
func CleanUp(t testing.TB, wrapper Wrapper) {
	require.NoError(t, exec(wrapper, "TRUNCATE TABLE "+TestTable), "error cleaning up the test table")
}

func exec(wrapper Wrapper, statement string) error {
	ctx := context.Background()

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err := w.pool.Exec(ctx, statement)
		return err

	case *SQLDBWrapper:
		_, err := w.db.ExecContext(ctx, statement)
		return err

	case *SQLXWrapper:
		_, err := w.db.ExecContext(ctx, statement)
		return err

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}
}
