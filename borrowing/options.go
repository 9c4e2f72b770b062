package borrowing

import (
	"time"
)

// Clock supplies the current wall-clock time. The calendar date derived from
// it drives borrow, due and return dates, which makes the components
// testable by direct invocation with a fixed clock.
type Clock func() time.Time

// config holds the shared configuration of the borrowing components.
type config struct {
	loanPeriod time.Duration
	clock      Clock
	observed
}

func defaultConfig() config {
	return config{
		loanPeriod: DefaultLoanPeriod,
		clock:      time.Now,
	}
}

// Option defines a functional option for configuring a borrowing component.
type Option func(*config) error

// WithLoanPeriod sets the duration a borrowed book may be kept before it is
// due. Only the LifecycleEngine consumes this value.
func WithLoanPeriod(period time.Duration) Option {
	return func(c *config) error {
		if period <= 0 {
			return ErrInvalidLoanPeriod
		}

		c.loanPeriod = period

		return nil
	}
}

// WithClock sets the clock used to derive calendar dates.
func WithClock(clock Clock) Option {
	return func(c *config) error {
		if clock == nil {
			return ErrNilClockSupplied
		}

		c.clock = clock

		return nil
	}
}

// WithLogger sets the logger for the component.
//
// Debug level: per-operation detail (development use)
// Info level: loan lifecycle transitions and sweep results (production-safe)
// Warn level: non-critical issues like rejected requests
// Error level: infrastructure failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the component. When
// configured it takes precedence over the plain logger and receives log
// messages with context information for automatic trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(c *config) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the component. The collector
// will receive operation counters with outcome labels and durations.
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}

func buildConfig(options ...Option) (config, error) {
	cfg := defaultConfig()

	for _, option := range options {
		if err := option(&cfg); err != nil {
			return config{}, err
		}
	}

	return cfg, nil
}
