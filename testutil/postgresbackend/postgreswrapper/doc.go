// Package postgreswrapper creates Postgres backends over every supported adapter for the integration tests.
//
// All adapters are used unless the ADAPTER_TYPE environment variable names one of
// pgxpool, sqldb or sqlx. Tests are skipped when UNITOFWORK_POSTGRES_DSN is not set.
package postgreswrapper
