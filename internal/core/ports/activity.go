package ports

import (
	"context"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

// LogSink is the append-only destination of activity log entries.
type LogSink interface {
	Append(ctx context.Context, entry domain.LogEntry) error
}

type ActivityLogRepository interface {
	List(ctx context.Context, filter domain.ActivityFilter) ([]domain.StoredLogEntry, error)
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}
