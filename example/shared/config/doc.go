// Package config provides database configuration helpers for PostgreSQL
// connections for the example: borrowing lifecycle of a public library.
//
// This package contains factory functions for creating database connections
// using different PostgreSQL drivers (pgx.Pool, sql.DB, sqlx.DB) with
// pre-configured DSNs for local development and tests.
package config
