package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/libraryops/borrowing-lifecycle-go/borrowing"
	"github.com/libraryops/borrowing-lifecycle-go/borrowing/postgresengine/internal/adapters"
)

const (
	defaultLoansTableName = "borrowings"
	defaultBooksTableName = "books"
	defaultUsersTableName = "users"

	logMsgBuildQueryFailed    = "failed to build query"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgNoRowsAffected      = "no rows were affected by update"
	logMsgBeginTxFailed       = "failed to begin transaction"
	logMsgCommitTxFailed      = "failed to commit transaction"
	logMsgRollbackTxFailed    = "failed to roll back transaction"
	logMsgSQLExecuted         = "executed sql for: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrTable              = "table"
	logAttrDurationMS         = "duration_ms"
	logActionSelect           = "select"
	logActionInsert           = "insert"
	logActionUpdate           = "update"

	colID            = "id"
	colAvailability  = "availability"
	colBorrowedCount = "borrowed_book_count"
	colUserID        = "user_id"
	colBookID        = "book_id"
	colBorrowDate    = "borrow_date"
	colDueDate       = "due_date"
	colReturnDate    = "return_date"
	colOverdue       = "overdue"

	dialectPostgres = "postgres"
)

// QueryDurationMetric is recorded for every SQL statement the storage executes.
const QueryDurationMetric = "ledger_storage_query_duration"

type sqlQueryString = string

// LedgerStorage is the Postgres implementation of borrowing.Storage. It
// leverages a database adapter and supports customizable logging, metrics
// and table configuration.
//
// Reads of book, patron and loan rows performed inside WithinTransaction
// take row locks (SELECT ... FOR UPDATE), which serializes two concurrent
// borrow attempts for the same book id or the same user id: the loser of
// the race observes the committed state of the winner.
type LedgerStorage struct {
	db   adapters.DBAdapter
	q    adapters.Querier // the active query target: the adapter, or an open transaction
	inTx bool

	loansTableName string
	booksTableName string
	usersTableName string

	logger           borrowing.Logger
	contextualLogger borrowing.ContextualLogger
	metrics          borrowing.MetricsCollector
}

var _ borrowing.Storage = LedgerStorage{}

// NewLedgerStorageFromPGXPool creates a new LedgerStorage using a pgx Pool
// with optional configuration.
func NewLedgerStorageFromPGXPool(db *pgxpool.Pool, options ...Option) (LedgerStorage, error) {
	if db == nil {
		return LedgerStorage{}, borrowing.ErrNilDatabaseConnection
	}

	return newLedgerStorage(adapters.NewPGXAdapter(db), options...)
}

// NewLedgerStorageFromSQLDB creates a new LedgerStorage using a sql.DB with
// optional configuration.
func NewLedgerStorageFromSQLDB(db *sql.DB, options ...Option) (LedgerStorage, error) {
	if db == nil {
		return LedgerStorage{}, borrowing.ErrNilDatabaseConnection
	}

	return newLedgerStorage(adapters.NewSQLAdapter(db), options...)
}

// NewLedgerStorageFromSQLX creates a new LedgerStorage using a sqlx.DB with
// optional configuration.
func NewLedgerStorageFromSQLX(db *sqlx.DB, options ...Option) (LedgerStorage, error) {
	if db == nil {
		return LedgerStorage{}, borrowing.ErrNilDatabaseConnection
	}

	return newLedgerStorage(adapters.NewSQLXAdapter(db), options...)
}

func newLedgerStorage(adapter adapters.DBAdapter, options ...Option) (LedgerStorage, error) {
	storage := LedgerStorage{
		db:             adapter,
		q:              adapter,
		loansTableName: defaultLoansTableName,
		booksTableName: defaultBooksTableName,
		usersTableName: defaultUsersTableName,
	}

	for _, option := range options {
		if err := option(&storage); err != nil {
			return LedgerStorage{}, err
		}
	}

	return storage, nil
}

// WithinTransaction runs fn against a transactional view of the storage.
// A nested call from within an open transaction reuses that transaction.
func (s LedgerStorage) WithinTransaction(
	ctx context.Context,
	fn func(ctx context.Context, tx borrowing.Stores) error,
) error {

	if s.inTx {
		return fn(ctx, s)
	}

	dbTx, beginErr := s.db.BeginTx(ctx)
	if beginErr != nil {
		s.logError(ctx, logMsgBeginTxFailed, logAttrError, beginErr.Error())
		return errors.Join(borrowing.ErrBeginningTxFailed, beginErr)
	}

	txView := s
	txView.q = dbTx
	txView.inTx = true

	if fnErr := fn(ctx, txView); fnErr != nil {
		if rollbackErr := dbTx.Rollback(ctx); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackTxFailed, logAttrError, rollbackErr.Error())
		}

		return fnErr
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		s.logError(ctx, logMsgCommitTxFailed, logAttrError, commitErr.Error())
		return errors.Join(borrowing.ErrCommittingTxFailed, commitErr)
	}

	return nil
}

// FindBookByID retrieves a single book copy's availability record.
func (s LedgerStorage) FindBookByID(ctx context.Context, id uuid.UUID) (borrowing.Book, bool, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.booksTableName).
		Select(colID, colAvailability).
		Where(goqu.C(colID).Eq(id.String()))

	sqlQuery, err := s.toSQL(ctx, s.lockWhenInTx(selectStmt))
	if err != nil {
		return borrowing.Book{}, false, err
	}

	rows, err := s.executeQuery(ctx, sqlQuery)
	if err != nil {
		return borrowing.Book{}, false, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return borrowing.Book{}, false, nil
	}

	var book borrowing.Book
	if scanErr := rows.Scan(&book.ID, &book.Availability); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error(), logAttrTable, s.booksTableName)
		return borrowing.Book{}, false, errors.Join(borrowing.ErrScanningDBRowFailed, scanErr)
	}

	return book, true, nil
}

// SaveBook persists the book's availability flag.
func (s LedgerStorage) SaveBook(ctx context.Context, book borrowing.Book) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.booksTableName).
		Set(goqu.Record{colAvailability: book.Availability}).
		Where(goqu.C(colID).Eq(book.ID.String()))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error(), logAttrTable, s.booksTableName)
		return errors.Join(borrowing.ErrBuildingQueryFailed, toSQLErr)
	}

	return s.executeUpdate(ctx, sqlQuery, s.booksTableName)
}

// FindUserByID retrieves a single patron's quota record.
func (s LedgerStorage) FindUserByID(ctx context.Context, id uuid.UUID) (borrowing.Patron, bool, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.usersTableName).
		Select(colID, colBorrowedCount).
		Where(goqu.C(colID).Eq(id.String()))

	sqlQuery, err := s.toSQL(ctx, s.lockWhenInTx(selectStmt))
	if err != nil {
		return borrowing.Patron{}, false, err
	}

	rows, err := s.executeQuery(ctx, sqlQuery)
	if err != nil {
		return borrowing.Patron{}, false, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return borrowing.Patron{}, false, nil
	}

	var patron borrowing.Patron
	if scanErr := rows.Scan(&patron.ID, &patron.BorrowedCount); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error(), logAttrTable, s.usersTableName)
		return borrowing.Patron{}, false, errors.Join(borrowing.ErrScanningDBRowFailed, scanErr)
	}

	return patron, true, nil
}

// SaveUser persists the patron's borrowed-book count.
func (s LedgerStorage) SaveUser(ctx context.Context, patron borrowing.Patron) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.usersTableName).
		Set(goqu.Record{colBorrowedCount: patron.BorrowedCount}).
		Where(goqu.C(colID).Eq(patron.ID.String()))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error(), logAttrTable, s.usersTableName)
		return errors.Join(borrowing.ErrBuildingQueryFailed, toSQLErr)
	}

	return s.executeUpdate(ctx, sqlQuery, s.usersTableName)
}

// InsertLoan appends a new loan row to the ledger.
func (s LedgerStorage) InsertLoan(ctx context.Context, loan borrowing.Loan) error {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.loansTableName).
		Rows(goqu.Record{
			colID:         loan.ID.String(),
			colUserID:     loan.UserID.String(),
			colBookID:     loan.BookID.String(),
			colBorrowDate: loan.BorrowDate,
			colDueDate:    loan.DueDate,
			colReturnDate: nullableDate(loan.ReturnDate),
			colOverdue:    loan.Overdue,
		})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error(), logAttrTable, s.loansTableName)
		return errors.Join(borrowing.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	_, execErr := s.q.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionInsert, time.Since(start))

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return errors.Join(borrowing.ErrSavingRecordFailed, execErr)
	}

	return nil
}

// SaveLoan persists the mutable fields of an existing loan row: the return
// date and the overdue flag.
func (s LedgerStorage) SaveLoan(ctx context.Context, loan borrowing.Loan) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.loansTableName).
		Set(goqu.Record{
			colReturnDate: nullableDate(loan.ReturnDate),
			colOverdue:    loan.Overdue,
		}).
		Where(goqu.C(colID).Eq(loan.ID.String()))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error(), logAttrTable, s.loansTableName)
		return errors.Join(borrowing.ErrBuildingQueryFailed, toSQLErr)
	}

	return s.executeUpdate(ctx, sqlQuery, s.loansTableName)
}

// FindLoanByID retrieves a single loan row.
func (s LedgerStorage) FindLoanByID(ctx context.Context, id uuid.UUID) (borrowing.Loan, bool, error) {
	selectStmt := s.selectLoans().Where(goqu.C(colID).Eq(id.String()))

	sqlQuery, err := s.toSQL(ctx, s.lockWhenInTx(selectStmt))
	if err != nil {
		return borrowing.Loan{}, false, err
	}

	loans, err := s.queryLoans(ctx, sqlQuery)
	if err != nil {
		return borrowing.Loan{}, false, err
	}

	if len(loans) == 0 {
		return borrowing.Loan{}, false, nil
	}

	return loans[0], true, nil
}

// FindLoansByUser retrieves a stable page of the user's loans, open and
// closed, ordered by borrow date.
func (s LedgerStorage) FindLoansByUser(
	ctx context.Context,
	userID uuid.UUID,
	page borrowing.Page,
) ([]borrowing.Loan, error) {

	page = page.Normalized()

	selectStmt := s.selectLoans().
		Where(goqu.C(colUserID).Eq(userID.String())).
		Order(goqu.I(colBorrowDate).Asc(), goqu.I(colID).Asc()).
		Offset(uint(page.Offset())).
		Limit(uint(page.Size))

	sqlQuery, err := s.toSQL(ctx, selectStmt)
	if err != nil {
		return nil, err
	}

	return s.queryLoans(ctx, sqlQuery)
}

// FindAllLoans retrieves every loan in the ledger ordered by borrow date.
func (s LedgerStorage) FindAllLoans(ctx context.Context) ([]borrowing.Loan, error) {
	selectStmt := s.selectLoans().
		Order(goqu.I(colBorrowDate).Asc(), goqu.I(colID).Asc())

	sqlQuery, err := s.toSQL(ctx, selectStmt)
	if err != nil {
		return nil, err
	}

	return s.queryLoans(ctx, sqlQuery)
}

// FindOpenLoansDueBefore retrieves the reconciler's work set: open loans past
// their due date that are not flagged overdue yet.
func (s LedgerStorage) FindOpenLoansDueBefore(ctx context.Context, day time.Time) ([]borrowing.Loan, error) {
	selectStmt := s.selectLoans().
		Where(
			goqu.C(colReturnDate).IsNull(),
			goqu.C(colDueDate).Lt(borrowing.ToCalendarDate(day)),
			goqu.C(colOverdue).IsFalse(),
		).
		Order(goqu.I(colDueDate).Asc(), goqu.I(colID).Asc())

	sqlQuery, err := s.toSQL(ctx, s.lockWhenInTx(selectStmt))
	if err != nil {
		return nil, err
	}

	return s.queryLoans(ctx, sqlQuery)
}

// FindUnreturnedLoansDueBefore retrieves a stable page of the report's work
// set: open loans past their due date, regardless of the overdue flag.
func (s LedgerStorage) FindUnreturnedLoansDueBefore(
	ctx context.Context,
	day time.Time,
	page borrowing.Page,
) ([]borrowing.Loan, error) {

	page = page.Normalized()

	selectStmt := s.selectLoans().
		Where(
			goqu.C(colReturnDate).IsNull(),
			goqu.C(colDueDate).Lt(borrowing.ToCalendarDate(day)),
		).
		Order(goqu.I(colDueDate).Asc(), goqu.I(colID).Asc()).
		Offset(uint(page.Offset())).
		Limit(uint(page.Size))

	sqlQuery, err := s.toSQL(ctx, selectStmt)
	if err != nil {
		return nil, err
	}

	return s.queryLoans(ctx, sqlQuery)
}

func (s LedgerStorage) selectLoans() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(colID, colUserID, colBookID, colBorrowDate, colDueDate, colReturnDate, colOverdue)
}

// lockWhenInTx adds a row lock to reads performed inside a transaction, so
// concurrent write-sets touching the same rows serialize.
func (s LedgerStorage) lockWhenInTx(selectStmt *goqu.SelectDataset) *goqu.SelectDataset {
	if !s.inTx {
		return selectStmt
	}

	return selectStmt.ForUpdate(exp.Wait)
}

func (s LedgerStorage) toSQL(ctx context.Context, selectStmt *goqu.SelectDataset) (sqlQueryString, error) {
	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return "", errors.Join(borrowing.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// executeQuery executes the SQL query and records timing information.
func (s LedgerStorage) executeQuery(ctx context.Context, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := s.q.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionSelect, time.Since(start))

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(borrowing.ErrQueryingStorageFailed, queryErr)
	}

	return rows, nil
}

// executeUpdate executes an update statement and validates that it touched a row.
func (s LedgerStorage) executeUpdate(ctx context.Context, sqlQuery string, table string) error {
	start := time.Now()
	result, execErr := s.q.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionUpdate, time.Since(start))

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return errors.Join(borrowing.ErrSavingRecordFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())
		return errors.Join(borrowing.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		s.logWarn(ctx, logMsgNoRowsAffected, logAttrTable, table, logAttrQuery, sqlQuery)
		return borrowing.ErrSavingRecordFailed
	}

	return nil
}

// queryLoans executes a loan select and scans the result rows.
func (s LedgerStorage) queryLoans(ctx context.Context, sqlQuery string) ([]borrowing.Loan, error) {
	rows, err := s.executeQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	loans := make([]borrowing.Loan, 0)

	for rows.Next() {
		var loan borrowing.Loan
		var returnDate sql.NullTime

		scanErr := rows.Scan(&loan.ID, &loan.UserID, &loan.BookID, &loan.BorrowDate, &loan.DueDate, &returnDate, &loan.Overdue)
		if scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error(), logAttrTable, s.loansTableName)
			return nil, errors.Join(borrowing.ErrScanningDBRowFailed, scanErr)
		}

		if returnDate.Valid {
			loan.ReturnDate = borrowing.ToCalendarDate(returnDate.Time)
		}

		loan.BorrowDate = borrowing.ToCalendarDate(loan.BorrowDate)
		loan.DueDate = borrowing.ToCalendarDate(loan.DueDate)

		loans = append(loans, loan)
	}

	return loans, nil
}

// closeRows safely closes database rows and logs any errors.
func (s LedgerStorage) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// nullableDate maps a zero calendar date to SQL NULL.
func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t
}
