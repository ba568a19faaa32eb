package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
	"github.com/atvirokodosprendimai/activitylog/internal/core/ports"
)

// ActivityLogger appends entries to the log sink. A failed append is retried
// once; after that the entry is dropped with a warning. Callers never see an
// error: losing an activity entry must not fail the user's action.
type ActivityLogger struct {
	sink       ports.LogSink
	clock      clockwork.Clock
	retryDelay time.Duration
	logger     *slog.Logger

	appended atomic.Int64
	retried  atomic.Int64
	dropped  atomic.Int64
}

type ActivityLoggerMetrics struct {
	Appended int64
	Retried  int64
	Dropped  int64
}

func NewActivityLogger(sink ports.LogSink, clock clockwork.Clock, retryDelay time.Duration, logger *slog.Logger) *ActivityLogger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityLogger{sink: sink, clock: clock, retryDelay: retryDelay, logger: logger}
}

// Record appends entry and reports whether it was stored.
func (l *ActivityLogger) Record(ctx context.Context, entry domain.LogEntry) bool {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.clock.Now().UTC()
	}

	attempt := 0
	backoff := retry.WithMaxRetries(1, retry.NewConstant(l.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			l.retried.Add(1)
		}
		if err := l.sink.Append(ctx, entry); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		l.dropped.Add(1)
		l.logger.Warn("activity log entry dropped",
			"tenant_id", entry.TenantID,
			"context_id", entry.ContextID,
			"action", string(entry.Action),
			"attempts", attempt,
			"error", err,
		)
		return false
	}
	l.appended.Add(1)
	return true
}

func (l *ActivityLogger) Metrics() ActivityLoggerMetrics {
	return ActivityLoggerMetrics{
		Appended: l.appended.Load(),
		Retried:  l.retried.Load(),
		Dropped:  l.dropped.Load(),
	}
}
