package postgresengine

import (
	"github.com/libraryops/borrowing-lifecycle-go/borrowing"
)

// Option defines a functional option for configuring LedgerStorage.
type Option func(*LedgerStorage) error

// WithTableNames sets the table names for the loan ledger, the book catalog
// and the user accounts.
func WithTableNames(loansTable string, booksTable string, usersTable string) Option {
	return func(s *LedgerStorage) error {
		if loansTable == "" || booksTable == "" || usersTable == "" {
			return borrowing.ErrEmptyTableNameSupplied
		}

		s.loansTableName = loansTable
		s.booksTableName = booksTable
		s.usersTableName = usersTable

		return nil
	}
}

// WithLogger sets the logger for the LedgerStorage.
// The logger will receive messages at different levels based on the logger's
// configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Warn level: non-critical issues like cleanup or rollback failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger borrowing.Logger) Option {
	return func(s *LedgerStorage) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the LedgerStorage.
// When configured it takes precedence over the plain logger and receives
// log messages with context information for automatic trace correlation.
func WithContextualLogger(logger borrowing.ContextualLogger) Option {
	return func(s *LedgerStorage) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the LedgerStorage. The
// collector will receive per-statement query durations.
func WithMetrics(collector borrowing.MetricsCollector) Option {
	return func(s *LedgerStorage) error {
		s.metrics = collector
		return nil
	}
}
