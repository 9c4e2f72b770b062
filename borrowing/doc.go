// Package borrowing provides the core borrowing lifecycle of a library:
// the state machine that moves a book copy between "available" and
// "borrowed", the per-patron borrow quota, and the overdue bookkeeping
// derived from loan due dates.
//
// The package defines the fundamental types and interfaces used across
// different storage implementations, including the Loan record, the
// error taxonomy, and the store contracts the engine coordinates.
//
// Key types:
//   - LifecycleEngine: executes Borrow and Return as single atomic units
//   - OverdueReconciler: periodic sweep persisting the sticky overdue flag
//   - OverdueReportGenerator: live "who owes what, how late" projection
//   - HistoryReader: per-user and global loan history
//
// Common usage pattern:
//
//	engine, err := borrowing.NewLifecycleEngine(storage,
//		borrowing.WithLoanPeriod(14*24*time.Hour),
//		borrowing.WithLogger(logger))
//	if err != nil {
//		// handle error
//	}
//
//	loan, err := engine.Borrow(ctx, userID, bookID)
//	if errors.Is(err, borrowing.ErrBookUnavailable) {
//		// the copy is missing or currently out
//	}
package borrowing
