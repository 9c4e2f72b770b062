package borrowing

import (
	"context"
	"time"
)

const (
	logMsgSweepCompleted = "overdue sweep completed"
	logMsgSweepFailed    = "overdue sweep failed"
	logMsgRunnerStopped  = "periodic overdue sweep stopped"

	logAttrFlaggedCount = "flagged_count"
	logAttrSweepDay     = "sweep_day"
)

// Metric names recorded by the OverdueReconciler.
const (
	ReconcilerSweepsMetric        = "overdue_reconciler_sweeps_total"
	ReconcilerFlaggedLoansMetric  = "overdue_reconciler_flagged_loans_total"
	ReconcilerSweepDurationMetric = "overdue_reconciler_sweep_duration"
)

// OverdueReconciler flags open loans that have crossed their due date. The
// sweep is a plain synchronous method with no dependency on any scheduler,
// so it can be unit-tested by direct invocation; RunEvery is the thin
// periodic dispatcher around it.
//
// The reconciler only ever writes the overdue flag; it never touches a
// book's availability or a patron's borrowed count.
type OverdueReconciler struct {
	storage Storage
	clock   Clock
	observed
}

// NewOverdueReconciler creates a new OverdueReconciler with optional configuration.
func NewOverdueReconciler(storage Storage, options ...Option) (OverdueReconciler, error) {
	if storage == nil {
		return OverdueReconciler{}, ErrNilStorageSupplied
	}

	cfg, err := buildConfig(options...)
	if err != nil {
		return OverdueReconciler{}, err
	}

	return OverdueReconciler{
		storage:  storage,
		clock:    cfg.clock,
		observed: cfg.observed,
	}, nil
}

// Sweep flags every open loan whose due date lies strictly before today and
// that is not flagged yet, as one transactional batch. It is idempotent:
// a second run with no intervening borrows or returns selects nothing.
// Returns the number of loans flagged.
func (r OverdueReconciler) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	today := ToCalendarDate(r.clock())
	flagged := 0

	txErr := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx Stores) error {
		flagged = 0

		dueLoans, err := tx.FindOpenLoansDueBefore(ctx, today)
		if err != nil {
			return err
		}

		for _, loan := range dueLoans {
			loan.Overdue = true
			if saveErr := tx.SaveLoan(ctx, loan); saveErr != nil {
				return saveErr
			}

			flagged++
		}

		return nil
	})

	duration := time.Since(start)
	r.recordDuration(ReconcilerSweepDurationMetric, duration, map[string]string{labelOutcome: outcomeLabel(txErr)})
	r.incrementCounter(ReconcilerSweepsMetric, map[string]string{labelOutcome: outcomeLabel(txErr)})

	if txErr != nil {
		r.logError(ctx, logMsgSweepFailed,
			logAttrError, txErr.Error(),
			logAttrSweepDay, today.Format(time.DateOnly))

		return 0, txErr
	}

	for i := 0; i < flagged; i++ {
		r.incrementCounter(ReconcilerFlaggedLoansMetric, nil)
	}

	r.logInfo(ctx, logMsgSweepCompleted,
		logAttrFlaggedCount, flagged,
		logAttrSweepDay, today.Format(time.DateOnly),
		logAttrDurationMS, durationToMilliseconds(duration))

	return flagged, nil
}

// RunEvery invokes Sweep immediately and then on the given interval until
// the context is canceled. Sweep errors are logged and do not stop the loop;
// the next tick simply tries again.
func (r OverdueReconciler) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, _ = r.Sweep(ctx) // failures already logged inside Sweep

		select {
		case <-ctx.Done():
			r.logInfo(ctx, logMsgRunnerStopped)
			return
		case <-ticker.C:
		}
	}
}
