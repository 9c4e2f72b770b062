package postgresengine

import (
	"context"
	"math"
	"time"
)

const labelAction = "action"

// logQueryWithDuration logs SQL statements with execution time at debug
// level and records the query-duration metric, if configured.
func (s LedgerStorage) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	s.logDebug(ctx, logMsgSQLExecuted+action,
		logAttrDurationMS, durationToMilliseconds(duration),
		logAttrQuery, sqlQuery)

	if s.metrics != nil {
		s.metrics.RecordDuration(QueryDurationMetric, duration, map[string]string{labelAction: action})
	}
}

func (s LedgerStorage) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.DebugContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Debug(msg, args...)
	}
}

func (s LedgerStorage) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.WarnContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Warn(msg, args...)
	}
}

func (s LedgerStorage) logError(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Error(msg, args...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds
// with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
