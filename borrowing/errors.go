package borrowing

import (
	"errors"
)

// Business errors: expected, recoverable-by-caller conditions. The engine
// raises them before any mutation has been applied, so a caller never
// observes partial state behind one of these.
var (
	// ErrUserNotFound is returned when no patron exists for the given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrBookUnavailable is returned at borrow time when the book is missing
	// or currently on loan.
	ErrBookUnavailable = errors.New("book is not available")

	// ErrBorrowLimitExceeded is returned when the patron already holds the
	// maximum number of open loans.
	ErrBorrowLimitExceeded = errors.New("the user can borrow a maximum of 5 books")

	// ErrLoanNotFound is returned when no loan exists for the given id.
	ErrLoanNotFound = errors.New("borrowing record not found")

	// ErrAlreadyReturned is returned when the loan was already closed by a
	// return; a repeated return is rejected, not silently accepted.
	ErrAlreadyReturned = errors.New("book is already returned")

	// ErrOwnershipMismatch is returned when a patron tries to return a loan
	// that is not theirs.
	ErrOwnershipMismatch = errors.New("a loan can only be returned by the user who borrowed it")
)

// Infrastructure errors, kept disjoint from the business taxonomy so callers
// can map them to a 500-equivalent and decide about retrying.
var (
	ErrNilStorageSupplied     = errors.New("storage must not be nil")
	ErrNilLoanLedgerSupplied  = errors.New("loan ledger must not be nil")
	ErrNilClockSupplied       = errors.New("clock must not be nil")
	ErrInvalidLoanPeriod      = errors.New("loan period must be positive")
	ErrNilDatabaseConnection  = errors.New("database connection must not be nil")
	ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

	ErrBuildingQueryFailed       = errors.New("building query failed")
	ErrQueryingStorageFailed     = errors.New("querying storage failed")
	ErrScanningDBRowFailed       = errors.New("scanning database row failed")
	ErrSavingRecordFailed        = errors.New("saving record failed")
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")
	ErrBeginningTxFailed         = errors.New("beginning transaction failed")
	ErrCommittingTxFailed        = errors.New("committing transaction failed")
	ErrMarshalingReportFailed    = errors.New("marshaling overdue report failed")

	// ErrLedgerInconsistent signals that a loan references a book or user
	// that no longer exists in storage.
	ErrLedgerInconsistent = errors.New("ledger references a missing book or user")
)

// IsBusinessError reports whether err belongs to the borrowing error
// taxonomy, as opposed to an infrastructure failure.
func IsBusinessError(err error) bool {
	for _, business := range []error{
		ErrUserNotFound,
		ErrBookUnavailable,
		ErrBorrowLimitExceeded,
		ErrLoanNotFound,
		ErrAlreadyReturned,
		ErrOwnershipMismatch,
	} {
		if errors.Is(err, business) {
			return true
		}
	}

	return false
}
