package borrowing

import (
	"context"
	"time"
)

// Logger interface for operational logging, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace
// correlation. It follows the same dependency-free pattern as
// MetricsCollector, allowing users to integrate with any logging backend
// (OpenTelemetry, structured loggers, etc.) that supports context-based
// correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting performance and operational
// metrics of the borrowing components.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// observed carries the optional observability collaborators of a component
// and provides nil-safe helpers. The contextual logger wins over the plain
// logger when both are configured.
type observed struct {
	logger           Logger
	contextualLogger ContextualLogger
	metrics          MetricsCollector
}

func (o observed) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case o.contextualLogger != nil:
		o.contextualLogger.DebugContext(ctx, msg, args...)
	case o.logger != nil:
		o.logger.Debug(msg, args...)
	}
}

func (o observed) logInfo(ctx context.Context, msg string, args ...any) {
	switch {
	case o.contextualLogger != nil:
		o.contextualLogger.InfoContext(ctx, msg, args...)
	case o.logger != nil:
		o.logger.Info(msg, args...)
	}
}

func (o observed) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case o.contextualLogger != nil:
		o.contextualLogger.WarnContext(ctx, msg, args...)
	case o.logger != nil:
		o.logger.Warn(msg, args...)
	}
}

func (o observed) logError(ctx context.Context, msg string, args ...any) {
	switch {
	case o.contextualLogger != nil:
		o.contextualLogger.ErrorContext(ctx, msg, args...)
	case o.logger != nil:
		o.logger.Error(msg, args...)
	}
}

func (o observed) incrementCounter(metric string, labels map[string]string) {
	if o.metrics != nil {
		o.metrics.IncrementCounter(metric, labels)
	}
}

func (o observed) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if o.metrics != nil {
		o.metrics.RecordDuration(metric, duration, labels)
	}
}
