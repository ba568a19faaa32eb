package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

// SuppressionGate sits on every per-row mutation path. While a bulk marker is
// live for the entry's tenant, the individual entry is not written at all.
type SuppressionGate struct {
	registry *BulkRegistry
	activity *ActivityLogger
	logger   *slog.Logger

	suppressed atomic.Int64
}

func NewSuppressionGate(registry *BulkRegistry, activity *ActivityLogger, logger *slog.Logger) *SuppressionGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuppressionGate{registry: registry, activity: activity, logger: logger}
}

// Emit writes entry unless a bulk operation is active for its tenant. It
// reports whether the entry was stored. When the registry cannot be read the
// entry is written anyway.
func (g *SuppressionGate) Emit(ctx context.Context, entry domain.LogEntry) bool {
	active, err := g.registry.IsActive(ctx, entry.TenantID)
	if err != nil {
		g.logger.Warn("bulk registry lookup failed; logging individually",
			"tenant_id", entry.TenantID, "action", string(entry.Action), "error", err)
	}
	if active {
		g.suppressed.Add(1)
		g.logger.Debug("individual entry suppressed by bulk marker",
			"tenant_id", entry.TenantID, "action", string(entry.Action))
		return false
	}
	return g.activity.Record(ctx, entry)
}

func (g *SuppressionGate) Suppressed() int64 {
	return g.suppressed.Load()
}
