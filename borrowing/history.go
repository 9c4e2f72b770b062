package borrowing

import (
	"context"

	"github.com/google/uuid"
)

// HistoryReader serves borrowing-history projections over the ledger. It
// never mutates anything.
type HistoryReader struct {
	storage Stores
	observed
}

// NewHistoryReader creates a new HistoryReader with optional configuration.
func NewHistoryReader(storage Stores, options ...Option) (HistoryReader, error) {
	if storage == nil {
		return HistoryReader{}, ErrNilStorageSupplied
	}

	cfg, err := buildConfig(options...)
	if err != nil {
		return HistoryReader{}, err
	}

	return HistoryReader{
		storage:  storage,
		observed: cfg.observed,
	}, nil
}

// ListUserHistory returns the requested page of the user's loans, open and
// closed. Fails with ErrUserNotFound for an unknown user.
func (h HistoryReader) ListUserHistory(ctx context.Context, userID uuid.UUID, page Page) ([]Loan, error) {
	_, found, err := h.storage.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}

	return h.storage.FindLoansByUser(ctx, userID, page.Normalized())
}

// ListAllHistory returns every loan in the ledger.
func (h HistoryReader) ListAllHistory(ctx context.Context) ([]Loan, error) {
	return h.storage.FindAllLoans(ctx)
}
