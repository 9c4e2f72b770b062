package borrowing

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	logMsgLoanCreated    = "loan created"
	logMsgLoanReturned   = "loan returned"
	logMsgBorrowRejected = "borrow rejected"
	logMsgReturnRejected = "return rejected"
	logMsgBorrowFailed   = "borrow failed with infrastructure error"
	logMsgReturnFailed   = "return failed with infrastructure error"

	logAttrError      = "error"
	logAttrUserID     = "user_id"
	logAttrBookID     = "book_id"
	logAttrLoanID     = "loan_id"
	logAttrDueDate    = "due_date"
	logAttrOverdue    = "overdue"
	logAttrDurationMS = "duration_ms"

	labelOperation = "operation"
	labelOutcome   = "outcome"

	operationBorrow = "borrow"
	operationReturn = "return"

	outcomeSuccess        = "success"
	outcomeRejected       = "rejected"
	outcomeInfrastructure = "infrastructure_error"
)

// Metric names recorded by the LifecycleEngine.
const (
	EngineOperationsMetric        = "borrowing_engine_operations_total"
	EngineOperationDurationMetric = "borrowing_engine_operation_duration"
)

// LifecycleEngine orchestrates borrow and return operations against the
// book, patron and loan stores, enforcing the borrowing invariants. Each
// operation's precondition checks and write-set run inside one storage
// transaction: either all effects become visible or none do.
type LifecycleEngine struct {
	storage    Storage
	loanPeriod time.Duration
	clock      Clock
	observed
}

// NewLifecycleEngine creates a new LifecycleEngine with optional configuration.
func NewLifecycleEngine(storage Storage, options ...Option) (LifecycleEngine, error) {
	if storage == nil {
		return LifecycleEngine{}, ErrNilStorageSupplied
	}

	cfg, err := buildConfig(options...)
	if err != nil {
		return LifecycleEngine{}, err
	}

	return LifecycleEngine{
		storage:    storage,
		loanPeriod: cfg.loanPeriod,
		clock:      cfg.clock,
		observed:   cfg.observed,
	}, nil
}

// LoanPeriod returns the configured loan period.
func (e LifecycleEngine) LoanPeriod() time.Duration {
	return e.loanPeriod
}

// Borrow lends the book to the user and returns the persisted open Loan.
//
// Precondition order is a contract callers rely on under multiple
// simultaneous violations:
//  1. the book exists and is available -> ErrBookUnavailable
//  2. the user exists                  -> ErrUserNotFound
//  3. the user is below the quota      -> ErrBorrowLimitExceeded
//
// On success the loan insert, the count increment and the availability flip
// are applied as a single atomic unit.
func (e LifecycleEngine) Borrow(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) (Loan, error) {
	start := time.Now()
	var loan Loan

	txErr := e.storage.WithinTransaction(ctx, func(ctx context.Context, tx Stores) error {
		book, found, err := tx.FindBookByID(ctx, bookID)
		if err != nil {
			return err
		}
		if !found || !book.Availability {
			return ErrBookUnavailable
		}

		user, found, err := tx.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		if !user.CanBorrow() {
			return ErrBorrowLimitExceeded
		}

		loan = BuildLoan(userID, bookID, e.clock(), e.loanPeriod)
		if insertErr := tx.InsertLoan(ctx, loan); insertErr != nil {
			return insertErr
		}

		user.BorrowedCount++
		if saveErr := tx.SaveUser(ctx, user); saveErr != nil {
			return saveErr
		}

		book.Availability = false

		return tx.SaveBook(ctx, book)
	})

	e.observeOperation(ctx, operationBorrow, txErr, time.Since(start))

	if txErr != nil {
		e.logBorrowOutcome(ctx, txErr, userID, bookID)
		return Loan{}, txErr
	}

	e.logInfo(ctx, logMsgLoanCreated,
		logAttrLoanID, loan.ID.String(),
		logAttrUserID, userID.String(),
		logAttrBookID, bookID.String(),
		logAttrDueDate, loan.DueDate.Format(time.DateOnly))

	return loan, nil
}

// Return closes the loan for the requesting user and returns the closed Loan.
//
// Precondition order:
//  1. the loan exists                   -> ErrLoanNotFound
//  2. the loan is still open            -> ErrAlreadyReturned
//  3. the requesting user owns the loan -> ErrOwnershipMismatch
//
// On success the return date, the sticky overdue flag, the availability flip
// and the count decrement (clamped at zero) are applied as a single atomic
// unit.
func (e LifecycleEngine) Return(ctx context.Context, loanID uuid.UUID, requestingUserID uuid.UUID) (Loan, error) {
	start := time.Now()
	var returned Loan

	txErr := e.storage.WithinTransaction(ctx, func(ctx context.Context, tx Stores) error {
		loan, found, err := tx.FindLoanByID(ctx, loanID)
		if err != nil {
			return err
		}
		if !found {
			return ErrLoanNotFound
		}
		if loan.IsReturned() {
			return ErrAlreadyReturned
		}
		if loan.UserID != requestingUserID {
			return ErrOwnershipMismatch
		}

		today := ToCalendarDate(e.clock())
		loan.ReturnDate = today
		if today.After(loan.DueDate) {
			loan.Overdue = true // sticky - a flag set by the reconciler is never cleared here
		}

		if saveErr := tx.SaveLoan(ctx, loan); saveErr != nil {
			return saveErr
		}

		book, found, err := tx.FindBookByID(ctx, loan.BookID)
		if err != nil {
			return err
		}
		if !found {
			return ErrLedgerInconsistent
		}

		book.Availability = true
		if saveErr := tx.SaveBook(ctx, book); saveErr != nil {
			return saveErr
		}

		user, found, err := tx.FindUserByID(ctx, loan.UserID)
		if err != nil {
			return err
		}
		if !found {
			return ErrLedgerInconsistent
		}

		if user.BorrowedCount > 0 {
			user.BorrowedCount--
		}

		if saveErr := tx.SaveUser(ctx, user); saveErr != nil {
			return saveErr
		}

		returned = loan

		return nil
	})

	e.observeOperation(ctx, operationReturn, txErr, time.Since(start))

	if txErr != nil {
		e.logReturnOutcome(ctx, txErr, loanID, requestingUserID)
		return Loan{}, txErr
	}

	e.logInfo(ctx, logMsgLoanReturned,
		logAttrLoanID, returned.ID.String(),
		logAttrUserID, requestingUserID.String(),
		logAttrBookID, returned.BookID.String(),
		logAttrOverdue, returned.Overdue)

	return returned, nil
}

func (e LifecycleEngine) observeOperation(ctx context.Context, operation string, err error, duration time.Duration) {
	_ = ctx

	labels := map[string]string{
		labelOperation: operation,
		labelOutcome:   outcomeLabel(err),
	}

	e.incrementCounter(EngineOperationsMetric, labels)
	e.recordDuration(EngineOperationDurationMetric, duration, labels)
}

func (e LifecycleEngine) logBorrowOutcome(ctx context.Context, err error, userID uuid.UUID, bookID uuid.UUID) {
	if IsBusinessError(err) {
		e.logWarn(ctx, logMsgBorrowRejected,
			logAttrError, err.Error(),
			logAttrUserID, userID.String(),
			logAttrBookID, bookID.String())

		return
	}

	e.logError(ctx, logMsgBorrowFailed,
		logAttrError, err.Error(),
		logAttrUserID, userID.String(),
		logAttrBookID, bookID.String())
}

func (e LifecycleEngine) logReturnOutcome(ctx context.Context, err error, loanID uuid.UUID, requestingUserID uuid.UUID) {
	if IsBusinessError(err) {
		e.logWarn(ctx, logMsgReturnRejected,
			logAttrError, err.Error(),
			logAttrLoanID, loanID.String(),
			logAttrUserID, requestingUserID.String())

		return
	}

	e.logError(ctx, logMsgReturnFailed,
		logAttrError, err.Error(),
		logAttrLoanID, loanID.String(),
		logAttrUserID, requestingUserID.String())
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case IsBusinessError(err):
		return outcomeRejected
	default:
		return outcomeInfrastructure
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds
// with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
