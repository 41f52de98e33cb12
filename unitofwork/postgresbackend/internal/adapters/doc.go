// Package adapters provide database adapter implementations for the PostgreSQL backend.
//
// Three PostgreSQL database libraries are supported through one DBAdapter interface:
// pgxpool.Pool, sql.DB (lib/pq) and sqlx.DB. The backend builds complete SQL strings
// and only needs query execution and row scanning from them.
package adapters
