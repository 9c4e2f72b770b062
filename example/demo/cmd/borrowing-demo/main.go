// Command borrowing-demo runs a small end-to-end demonstration of the
// borrowing lifecycle against a local PostgreSQL database: it seeds a book
// and a patron, borrows and returns the book, starts the overdue reconciler
// in the background and prints the overdue report as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/libraryops/borrowing-lifecycle-go/borrowing"
	"github.com/libraryops/borrowing-lifecycle-go/borrowing/oteladapters"
	"github.com/libraryops/borrowing-lifecycle-go/borrowing/postgresengine"
	"github.com/libraryops/borrowing-lifecycle-go/example/shared/config"
)

const defaultSweepInterval = time.Hour

type Config struct {
	SweepInterval        time.Duration
	LoanPeriod           time.Duration
	ObservabilityEnabled bool
}

func main() {
	cfg := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	pgxPool, err := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolConfig())
	if err != nil {
		log.Fatalf("Failed to create pgx pool: %v", err)
	}
	defer pgxPool.Close()

	if pingErr := pgxPool.Ping(ctx); pingErr != nil {
		log.Fatalf("Failed to connect to database: %v", pingErr)
	}

	if schemaErr := ensureSchema(ctx, pgxPool); schemaErr != nil {
		log.Fatalf("Failed to create schema: %v", schemaErr)
	}

	storageOptions, engineOptions := cfg.buildOptions()

	storage, err := postgresengine.NewLedgerStorageFromPGXPool(pgxPool, storageOptions...)
	if err != nil {
		log.Fatalf("Failed to create ledger storage: %v", err)
	}

	engine, err := borrowing.NewLifecycleEngine(storage, engineOptions...)
	if err != nil {
		log.Fatalf("Failed to create lifecycle engine: %v", err)
	}

	reconciler, err := borrowing.NewOverdueReconciler(storage, engineOptions...)
	if err != nil {
		log.Fatalf("Failed to create overdue reconciler: %v", err)
	}

	reportGenerator, err := borrowing.NewOverdueReportGenerator(storage, engineOptions...)
	if err != nil {
		log.Fatalf("Failed to create report generator: %v", err)
	}

	go reconciler.RunEvery(ctx, cfg.SweepInterval)

	if demoErr := runDemoFlow(ctx, pgxPool, engine, reportGenerator); demoErr != nil {
		log.Fatalf("Demo flow failed: %v", demoErr)
	}

	log.Printf("Demo flow completed, reconciler sweeping every %s", cfg.SweepInterval)
	log.Printf("Press Ctrl+C to stop...")

	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)
	cancel()
}

func parseFlags() Config {
	var (
		sweepInterval = flag.Duration("sweep-interval", defaultSweepInterval, "Interval between overdue reconciler sweeps")
		loanPeriod    = flag.Duration("loan-period", borrowing.DefaultLoanPeriod, "Loan period used to compute due dates")
		observability = flag.Bool("observability-enabled", false, "Enable OpenTelemetry observability")
	)

	flag.Parse()

	return Config{
		SweepInterval:        *sweepInterval,
		LoanPeriod:           *loanPeriod,
		ObservabilityEnabled: *observability,
	}
}

// buildOptions assembles the observability options for the storage and the
// lifecycle components. With observability disabled, a plain slog text
// logger is used; with it enabled, the OpenTelemetry adapters are wired in.
func (c Config) buildOptions() ([]postgresengine.Option, []borrowing.Option) {
	var storageOptions []postgresengine.Option
	engineOptions := []borrowing.Option{borrowing.WithLoanPeriod(c.LoanPeriod)}

	if c.ObservabilityEnabled {
		meter := otel.Meter("borrowing-demo")
		metricsCollector := oteladapters.NewMetricsCollector(meter)
		contextualLogger := oteladapters.NewSlogBridgeLogger("borrowing-demo")

		storageOptions = append(storageOptions,
			postgresengine.WithContextualLogger(contextualLogger),
			postgresengine.WithMetrics(metricsCollector))
		engineOptions = append(engineOptions,
			borrowing.WithContextualLogger(contextualLogger),
			borrowing.WithMetrics(metricsCollector))

		return storageOptions, engineOptions
	}

	logger := oteladapters.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	storageOptions = append(storageOptions, postgresengine.WithLogger(logger))
	engineOptions = append(engineOptions, borrowing.WithLogger(logger))

	return storageOptions, engineOptions
}

// runDemoFlow seeds a book and a patron, walks through one borrow and return
// cycle and prints the current overdue report.
func runDemoFlow(
	ctx context.Context,
	pool *pgxpool.Pool,
	engine borrowing.LifecycleEngine,
	reportGenerator borrowing.OverdueReportGenerator,
) error {

	bookID := uuid.New()
	userID := uuid.New()

	if err := seedBookAndPatron(ctx, pool, bookID, userID); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	loan, err := engine.Borrow(ctx, userID, bookID)
	if err != nil {
		return fmt.Errorf("borrow failed: %w", err)
	}

	log.Printf("Borrowed: loan=%s user=%s book=%s due=%s",
		loan.ID, loan.UserID, loan.BookID, loan.DueDate.Format(time.DateOnly))

	returned, err := engine.Return(ctx, loan.ID, userID)
	if err != nil {
		return fmt.Errorf("return failed: %w", err)
	}

	log.Printf("Returned: loan=%s overdue=%t", returned.ID, returned.Overdue)

	entries, err := reportGenerator.ListOverdue(ctx, borrowing.Page{Number: 0, Size: borrowing.DefaultPageSize})
	if err != nil {
		return fmt.Errorf("overdue report failed: %w", err)
	}

	reportJSON, err := entries.ToJSON()
	if err != nil {
		return fmt.Errorf("rendering overdue report failed: %w", err)
	}

	log.Printf("Overdue report: %s", reportJSON)

	return nil
}

func seedBookAndPatron(ctx context.Context, pool *pgxpool.Pool, bookID uuid.UUID, userID uuid.UUID) error {
	if _, err := pool.Exec(ctx,
		`INSERT INTO books (id, availability) VALUES ($1, TRUE)`, bookID); err != nil {

		return err
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO users (id, borrowed_book_count) VALUES ($1, 0)`, userID); err != nil {

		return err
	}

	return nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id uuid PRIMARY KEY,
			availability boolean NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id uuid PRIMARY KEY,
			borrowed_book_count integer NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS borrowings (
			id uuid PRIMARY KEY,
			user_id uuid NOT NULL,
			book_id uuid NOT NULL,
			borrow_date date NOT NULL,
			due_date date NOT NULL,
			return_date date,
			overdue boolean NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_borrowings_open_due
			ON borrowings (due_date) WHERE return_date IS NULL`,
	}

	for _, statement := range statements {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return err
		}
	}

	return nil
}
