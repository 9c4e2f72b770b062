package borrowing

import (
	"github.com/google/uuid"
)

// MaxBorrowedBooksPerPatron is the quota of concurrently open loans
// permitted per patron.
const MaxBorrowedBooksPerPatron = 5

// Book is the slice of the catalog record the lifecycle engine works with:
// one row is one physical copy with a single availability flag. The flag is
// true iff no open loan references the copy, and it is mutated only by the
// lifecycle engine.
type Book struct {
	ID           uuid.UUID
	Availability bool
}

// Patron is the slice of the user record the lifecycle engine works with.
// BorrowedCount equals the number of open loans for the patron and is
// mutated only by the lifecycle engine.
type Patron struct {
	ID            uuid.UUID
	BorrowedCount int
}

// CanBorrow reports whether the patron is below the borrow quota.
func (p Patron) CanBorrow() bool {
	return p.BorrowedCount < MaxBorrowedBooksPerPatron
}
