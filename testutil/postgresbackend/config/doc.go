// Package config provides PostgreSQL database configuration for the backend integration tests.
//
// The DSN is read from the UNITOFWORK_POSTGRES_DSN environment variable. Factory
// functions create connections for all supported adapters (pgx.Pool, sql.DB, sqlx.DB).
package config
