package borrowing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultPageSize is used when a Page is requested with a non-positive size.
const DefaultPageSize = 20

// Page selects a stable window of a result set. Ordering within the set is
// storage-defined but must be stable across requests absent underlying
// changes.
type Page struct {
	Number int // zero-based
	Size   int
}

// Normalized returns the page with a usable size.
func (p Page) Normalized() Page {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Number < 0 {
		p.Number = 0
	}

	return p
}

// Offset returns the number of records preceding this page.
func (p Page) Offset() int {
	n := p.Normalized()

	return n.Number * n.Size
}

// BookStore reads and writes the availability flag of book copies.
type BookStore interface {
	FindBookByID(ctx context.Context, id uuid.UUID) (Book, bool, error)
	SaveBook(ctx context.Context, book Book) error
}

// PatronStore reads and writes the borrowed-book count of patrons.
type PatronStore interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (Patron, bool, error)
	SaveUser(ctx context.Context, patron Patron) error
}

// LoanLedger is the entity store of borrow transactions.
//
// FindOpenLoansDueBefore selects open loans past their due date that are not
// flagged overdue yet (the reconciler's selection predicate), while
// FindUnreturnedLoansDueBefore selects them regardless of the flag (the
// report's selection predicate).
type LoanLedger interface {
	InsertLoan(ctx context.Context, loan Loan) error
	SaveLoan(ctx context.Context, loan Loan) error
	FindLoanByID(ctx context.Context, id uuid.UUID) (Loan, bool, error)
	FindLoansByUser(ctx context.Context, userID uuid.UUID, page Page) ([]Loan, error)
	FindAllLoans(ctx context.Context) ([]Loan, error)
	FindOpenLoansDueBefore(ctx context.Context, day time.Time) ([]Loan, error)
	FindUnreturnedLoansDueBefore(ctx context.Context, day time.Time, page Page) ([]Loan, error)
}

// Stores bundles the three stores the lifecycle engine coordinates.
type Stores interface {
	BookStore
	PatronStore
	LoanLedger
}

// Storage is a Stores implementation that can additionally run a function
// against a transactional view of itself. The function's reads and writes
// either commit as a whole or leave no effects behind; two transactions
// touching the same book or the same patron serialize against each other.
type Storage interface {
	Stores
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}
