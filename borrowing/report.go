package borrowing

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/google/uuid"
)

const logMsgReportGenerated = "overdue report page generated"

const logAttrEntryCount = "entry_count"

// OverdueEntry is one line of the overdue report: who owes what, how late.
// DaysOverdue is always greater than zero by construction of the filter.
type OverdueEntry struct {
	UserID      uuid.UUID `json:"userId"`
	BookID      uuid.UUID `json:"bookId"`
	DueDate     time.Time `json:"dueDate"`
	DaysOverdue int       `json:"daysOverdue"`
}

// OverdueEntries is an ordered page of the overdue report.
type OverdueEntries []OverdueEntry

// ToJSON renders the report page for export feeds.
func (entries OverdueEntries) ToJSON() ([]byte, error) {
	data, err := jsoniter.ConfigFastest.Marshal(entries)
	if err != nil {
		return nil, errors.Join(ErrMarshalingReportFailed, err)
	}

	return data, nil
}

// OverdueReportGenerator is a read-only projection over the loan ledger.
// It computes overdue status live from due dates, so report freshness does
// not depend on the reconciler having already run.
type OverdueReportGenerator struct {
	ledger LoanLedger
	clock  Clock
	observed
}

// NewOverdueReportGenerator creates a new OverdueReportGenerator with
// optional configuration.
func NewOverdueReportGenerator(ledger LoanLedger, options ...Option) (OverdueReportGenerator, error) {
	if ledger == nil {
		return OverdueReportGenerator{}, ErrNilLoanLedgerSupplied
	}

	cfg, err := buildConfig(options...)
	if err != nil {
		return OverdueReportGenerator{}, err
	}

	return OverdueReportGenerator{
		ledger:   ledger,
		clock:    cfg.clock,
		observed: cfg.observed,
	}, nil
}

// ListOverdue returns the requested page of loans that are unreturned and
// past their due date, regardless of their persisted overdue flag.
func (g OverdueReportGenerator) ListOverdue(ctx context.Context, page Page) (OverdueEntries, error) {
	today := ToCalendarDate(g.clock())

	loans, err := g.ledger.FindUnreturnedLoansDueBefore(ctx, today, page.Normalized())
	if err != nil {
		return nil, err
	}

	entries := make(OverdueEntries, 0, len(loans))
	for _, loan := range loans {
		entries = append(entries, OverdueEntry{
			UserID:      loan.UserID,
			BookID:      loan.BookID,
			DueDate:     loan.DueDate,
			DaysOverdue: WholeDaysBetween(loan.DueDate, today),
		})
	}

	g.logDebug(ctx, logMsgReportGenerated, logAttrEntryCount, len(entries))

	return entries, nil
}
