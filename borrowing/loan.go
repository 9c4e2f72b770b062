package borrowing

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLoanPeriod is the time a borrowed book copy may be kept before it
// is due. It can be overridden per engine with WithLoanPeriod.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Loan represents a single borrow transaction linking one user to one book
// copy for a bounded period.
//
// A Loan with a zero ReturnDate is open (the copy is currently borrowed).
// The Overdue flag is sticky: once set it is never cleared, even when the
// copy comes back.
type Loan struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	BookID     uuid.UUID
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate time.Time
	Overdue    bool
}

// BuildLoan creates a new open Loan borrowed at the given point in time.
// Borrow and due dates are calendar dates; the due date is the borrow date
// plus the loan period.
func BuildLoan(userID uuid.UUID, bookID uuid.UUID, borrowedAt time.Time, loanPeriod time.Duration) Loan {
	borrowDate := ToCalendarDate(borrowedAt)

	return Loan{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowDate,
		DueDate:    borrowDate.Add(loanPeriod),
		Overdue:    false,
	}
}

// IsReturned reports whether the loan was closed by a return.
func (l Loan) IsReturned() bool {
	return !l.ReturnDate.IsZero()
}

// IsDueBefore reports whether the loan's due date lies strictly before the
// calendar date of the given point in time.
func (l Loan) IsDueBefore(t time.Time) bool {
	return l.DueDate.Before(ToCalendarDate(t))
}

// ToCalendarDate truncates a point in time to its calendar date, midnight UTC.
func ToCalendarDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// WholeDaysBetween returns the number of whole days from one calendar date
// to a later one.
func WholeDaysBetween(from time.Time, until time.Time) int {
	return int(ToCalendarDate(until).Sub(ToCalendarDate(from)).Hours() / 24)
}
