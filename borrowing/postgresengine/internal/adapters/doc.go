// Package adapters provides database abstraction layers for the Postgres
// ledger storage.
//
// This internal package contains adapter implementations that allow the
// ledger storage to work with different PostgreSQL drivers and connection
// types through a unified interface, including transaction handles:
//   - pgx connection pools (pgxpool.Pool)
//   - standard library database connections (sql.DB)
//   - sqlx database connections (sqlx.DB)
//
// The adapters handle driver-specific differences while presenting a
// consistent API to the storage engine.
package adapters
