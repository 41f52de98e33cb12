// Package postgresbackend provides a PostgreSQL implementation of unitofwork.Backend.
//
// Each entity kind is mapped to a table with a TableMapping. Persist issues an UPDATE
// that sets exactly the dirty columns, Create an INSERT and Load a SELECT by primary key.
// Collection fields map to PostgreSQL array columns (e.g. REAL[], TEXT[]); they are
// encoded and decoded with lib/pq's array support, so all three adapters (pgx, sql.DB,
// sqlx) behave the same.
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	backend, _ := postgresbackend.NewBackendFromPGXPool(
//		db,
//		postgresbackend.WithMapping("profiles", postgresbackend.TableMapping{
//			Table:     "test_table",
//			KeyColumn: "profile_id",
//			Schema:    profiles.Schema,
//		}),
//		postgresbackend.WithLogger(logger),
//	)
//
//	tracker, _ := unitofwork.NewTracker(backend)
package postgresbackend
