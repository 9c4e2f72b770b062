// Package postgresengine provides the PostgreSQL implementation of the
// borrowing storage contract.
//
// The engine supports multiple database drivers through adapters:
//   - pgx connection pools (recommended for production)
//   - standard library database/sql connections
//   - sqlx database connections
//
// All SQL is built with goqu using the postgres dialect. Multi-step
// write-sets run through WithinTransaction, where reads take row locks so
// that concurrent borrow and return operations against the same book or the
// same patron serialize at the storage level.
//
// Expected schema (table names are configurable with WithTableNames):
//
//	CREATE TABLE books      (id uuid PRIMARY KEY, availability boolean NOT NULL);
//	CREATE TABLE users      (id uuid PRIMARY KEY, borrowed_book_count integer NOT NULL);
//	CREATE TABLE borrowings (
//		id          uuid PRIMARY KEY,
//		user_id     uuid NOT NULL,
//		book_id     uuid NOT NULL,
//		borrow_date date NOT NULL,
//		due_date    date NOT NULL,
//		return_date date,
//		overdue     boolean NOT NULL
//	);
package postgresengine
