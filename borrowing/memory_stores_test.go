package borrowing_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/libraryops/borrowing-lifecycle-go/borrowing"
)

// memoryStorage is an in-memory implementation of borrowing.Storage for
// tests. A single mutex held for the whole transaction gives the same
// serialization guarantee the row locks of the real engine provide, and a
// snapshot taken at transaction begin is restored when the function fails,
// so no partial write-set ever becomes visible.
//
// The fail* fields inject infrastructure errors into individual write
// operations.
type memoryStorage struct {
	mu    sync.Mutex
	books map[uuid.UUID]borrowing.Book
	users map[uuid.UUID]borrowing.Patron
	loans map[uuid.UUID]borrowing.Loan

	failSaveBook   error
	failSaveUser   error
	failInsertLoan error
	failSaveLoan   error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		books: make(map[uuid.UUID]borrowing.Book),
		users: make(map[uuid.UUID]borrowing.Patron),
		loans: make(map[uuid.UUID]borrowing.Loan),
	}
}

type memorySnapshot struct {
	books map[uuid.UUID]borrowing.Book
	users map[uuid.UUID]borrowing.Patron
	loans map[uuid.UUID]borrowing.Loan
}

func (s *memoryStorage) WithinTransaction(
	ctx context.Context,
	fn func(ctx context.Context, tx borrowing.Stores) error,
) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()

	if err := fn(ctx, memoryTx{s: s}); err != nil {
		s.restore(snapshot)
		return err
	}

	return nil
}

func (s *memoryStorage) snapshot() memorySnapshot {
	snap := memorySnapshot{
		books: make(map[uuid.UUID]borrowing.Book, len(s.books)),
		users: make(map[uuid.UUID]borrowing.Patron, len(s.users)),
		loans: make(map[uuid.UUID]borrowing.Loan, len(s.loans)),
	}

	for id, book := range s.books {
		snap.books[id] = book
	}
	for id, user := range s.users {
		snap.users[id] = user
	}
	for id, loan := range s.loans {
		snap.loans[id] = loan
	}

	return snap
}

func (s *memoryStorage) restore(snap memorySnapshot) {
	s.books = snap.books
	s.users = snap.users
	s.loans = snap.loans
}

// Non-transactional access locks per call.

func (s *memoryStorage) FindBookByID(_ context.Context, id uuid.UUID) (borrowing.Book, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findBook(id)
}

func (s *memoryStorage) SaveBook(_ context.Context, book borrowing.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveBook(book)
}

func (s *memoryStorage) FindUserByID(_ context.Context, id uuid.UUID) (borrowing.Patron, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findUser(id)
}

func (s *memoryStorage) SaveUser(_ context.Context, patron borrowing.Patron) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveUser(patron)
}

func (s *memoryStorage) InsertLoan(_ context.Context, loan borrowing.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLoan(loan)
}

func (s *memoryStorage) SaveLoan(_ context.Context, loan borrowing.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLoan(loan)
}

func (s *memoryStorage) FindLoanByID(_ context.Context, id uuid.UUID) (borrowing.Loan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findLoan(id)
}

func (s *memoryStorage) FindLoansByUser(_ context.Context, userID uuid.UUID, page borrowing.Page) ([]borrowing.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findLoansByUser(userID, page)
}

func (s *memoryStorage) FindAllLoans(_ context.Context) ([]borrowing.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findAllLoans()
}

func (s *memoryStorage) FindOpenLoansDueBefore(_ context.Context, day time.Time) ([]borrowing.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findOpenLoansDueBefore(day)
}

func (s *memoryStorage) FindUnreturnedLoansDueBefore(
	_ context.Context,
	day time.Time,
	page borrowing.Page,
) ([]borrowing.Loan, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findUnreturnedLoansDueBefore(day, page)
}

// memoryTx is the in-transaction view. The transaction already holds the
// mutex, so it delegates to the unlocked internals.
type memoryTx struct {
	s *memoryStorage
}

func (t memoryTx) FindBookByID(_ context.Context, id uuid.UUID) (borrowing.Book, bool, error) {
	return t.s.findBook(id)
}

func (t memoryTx) SaveBook(_ context.Context, book borrowing.Book) error {
	return t.s.saveBook(book)
}

func (t memoryTx) FindUserByID(_ context.Context, id uuid.UUID) (borrowing.Patron, bool, error) {
	return t.s.findUser(id)
}

func (t memoryTx) SaveUser(_ context.Context, patron borrowing.Patron) error {
	return t.s.saveUser(patron)
}

func (t memoryTx) InsertLoan(_ context.Context, loan borrowing.Loan) error {
	return t.s.insertLoan(loan)
}

func (t memoryTx) SaveLoan(_ context.Context, loan borrowing.Loan) error {
	return t.s.saveLoan(loan)
}

func (t memoryTx) FindLoanByID(_ context.Context, id uuid.UUID) (borrowing.Loan, bool, error) {
	return t.s.findLoan(id)
}

func (t memoryTx) FindLoansByUser(_ context.Context, userID uuid.UUID, page borrowing.Page) ([]borrowing.Loan, error) {
	return t.s.findLoansByUser(userID, page)
}

func (t memoryTx) FindAllLoans(_ context.Context) ([]borrowing.Loan, error) {
	return t.s.findAllLoans()
}

func (t memoryTx) FindOpenLoansDueBefore(_ context.Context, day time.Time) ([]borrowing.Loan, error) {
	return t.s.findOpenLoansDueBefore(day)
}

func (t memoryTx) FindUnreturnedLoansDueBefore(
	_ context.Context,
	day time.Time,
	page borrowing.Page,
) ([]borrowing.Loan, error) {

	return t.s.findUnreturnedLoansDueBefore(day, page)
}

// Unlocked internals. The loan finders mirror the ordering of the Postgres
// engine: borrow date for history, due date for overdue selections, loan id
// as the tie-breaker.

func (s *memoryStorage) findBook(id uuid.UUID) (borrowing.Book, bool, error) {
	book, found := s.books[id]
	return book, found, nil
}

func (s *memoryStorage) saveBook(book borrowing.Book) error {
	if s.failSaveBook != nil {
		return s.failSaveBook
	}

	s.books[book.ID] = book

	return nil
}

func (s *memoryStorage) findUser(id uuid.UUID) (borrowing.Patron, bool, error) {
	user, found := s.users[id]
	return user, found, nil
}

func (s *memoryStorage) saveUser(patron borrowing.Patron) error {
	if s.failSaveUser != nil {
		return s.failSaveUser
	}

	s.users[patron.ID] = patron

	return nil
}

func (s *memoryStorage) insertLoan(loan borrowing.Loan) error {
	if s.failInsertLoan != nil {
		return s.failInsertLoan
	}

	s.loans[loan.ID] = loan

	return nil
}

func (s *memoryStorage) saveLoan(loan borrowing.Loan) error {
	if s.failSaveLoan != nil {
		return s.failSaveLoan
	}

	s.loans[loan.ID] = loan

	return nil
}

func (s *memoryStorage) findLoan(id uuid.UUID) (borrowing.Loan, bool, error) {
	loan, found := s.loans[id]
	return loan, found, nil
}

func (s *memoryStorage) findLoansByUser(userID uuid.UUID, page borrowing.Page) ([]borrowing.Loan, error) {
	var loans []borrowing.Loan
	for _, loan := range s.loans {
		if loan.UserID == userID {
			loans = append(loans, loan)
		}
	}

	sortByBorrowDate(loans)

	return paginate(loans, page), nil
}

func (s *memoryStorage) findAllLoans() ([]borrowing.Loan, error) {
	loans := make([]borrowing.Loan, 0, len(s.loans))
	for _, loan := range s.loans {
		loans = append(loans, loan)
	}

	sortByBorrowDate(loans)

	return loans, nil
}

func (s *memoryStorage) findOpenLoansDueBefore(day time.Time) ([]borrowing.Loan, error) {
	cutoff := borrowing.ToCalendarDate(day)

	var loans []borrowing.Loan
	for _, loan := range s.loans {
		if !loan.IsReturned() && loan.DueDate.Before(cutoff) && !loan.Overdue {
			loans = append(loans, loan)
		}
	}

	sortByDueDate(loans)

	return loans, nil
}

func (s *memoryStorage) findUnreturnedLoansDueBefore(day time.Time, page borrowing.Page) ([]borrowing.Loan, error) {
	cutoff := borrowing.ToCalendarDate(day)

	var loans []borrowing.Loan
	for _, loan := range s.loans {
		if !loan.IsReturned() && loan.DueDate.Before(cutoff) {
			loans = append(loans, loan)
		}
	}

	sortByDueDate(loans)

	return paginate(loans, page), nil
}

func sortByBorrowDate(loans []borrowing.Loan) {
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].BorrowDate.Equal(loans[j].BorrowDate) {
			return loans[i].BorrowDate.Before(loans[j].BorrowDate)
		}

		return loans[i].ID.String() < loans[j].ID.String()
	})
}

func sortByDueDate(loans []borrowing.Loan) {
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].DueDate.Equal(loans[j].DueDate) {
			return loans[i].DueDate.Before(loans[j].DueDate)
		}

		return loans[i].ID.String() < loans[j].ID.String()
	})
}

func paginate(loans []borrowing.Loan, page borrowing.Page) []borrowing.Loan {
	page = page.Normalized()

	offset := page.Offset()
	if offset >= len(loans) {
		return nil
	}

	end := offset + page.Size
	if end > len(loans) {
		end = len(loans)
	}

	return loans[offset:end]
}

// fakeClock is a settable clock for driving calendar dates in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AdvanceDays(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Duration(days) * 24 * time.Hour)
}

// Interface guards.
var (
	_ borrowing.Storage = (*memoryStorage)(nil)
	_ borrowing.Stores  = memoryTx{}
)
