package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

// MarkerStore persists bulk operation markers where every connection and
// process can see them.
type MarkerStore interface {
	// InsertIfAbsent reports whether a new marker was written. An existing
	// marker of the same tenant is left untouched; one held by another tenant
	// yields domain.ErrConflict.
	InsertIfAbsent(ctx context.Context, marker domain.BulkOperationMarker) (bool, error)
	// Delete removes the marker only when tenantID owns it.
	Delete(ctx context.Context, tenantID, operationID string) (bool, error)
	ExistsSince(ctx context.Context, tenantID string, since time.Time) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Active(ctx context.Context, tenantID string, since time.Time) ([]domain.BulkOperationMarker, error)
}
