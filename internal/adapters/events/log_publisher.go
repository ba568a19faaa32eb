package events

import (
	"context"
	"log/slog"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

// LogPublisher writes outbox events to the structured log. It is the default
// publisher when no webhook is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	p.logger.InfoContext(ctx, "outbox publish",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"tenant_id", event.TenantID,
		"context_id", event.ContextID,
		"actor", event.Actor,
	)
	return nil
}
