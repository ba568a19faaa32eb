package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
	"github.com/atvirokodosprendimai/activitylog/internal/core/ports"
)

const DefaultMarkerStaleness = 5 * time.Minute

// BulkRegistry tracks in-progress bulk operations through durable markers.
// Suppression is tenant wide: any live marker for a tenant silences every
// individual entry for that tenant, whichever operation produced the row.
type BulkRegistry struct {
	store     ports.MarkerStore
	clock     clockwork.Clock
	staleness time.Duration
	logger    *slog.Logger
}

func NewBulkRegistry(store ports.MarkerStore, clock clockwork.Clock, staleness time.Duration, logger *slog.Logger) *BulkRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if staleness <= 0 {
		staleness = DefaultMarkerStaleness
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkRegistry{store: store, clock: clock, staleness: staleness, logger: logger}
}

// Begin writes the marker for operationID. Repeating Begin with the same id is
// a no-op for the owning tenant and domain.ErrConflict for any other. A write
// failure is returned (wrapping domain.ErrRegistryWrite) so the caller knows
// suppression is not in effect, but the bulk operation itself may proceed.
func (r *BulkRegistry) Begin(ctx context.Context, operationID, tenantID string, kind domain.OperationKind) error {
	marker := domain.BulkOperationMarker{
		OperationID: operationID,
		TenantID:    tenantID,
		Kind:        kind,
		CreatedAt:   r.clock.Now().UTC(),
	}
	if err := marker.Validate(); err != nil {
		return err
	}

	inserted, err := r.store.InsertIfAbsent(ctx, marker)
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("begin %s for %s: %w", operationID, tenantID, err)
	}
	if err != nil {
		r.logger.Warn("bulk marker begin failed; individual entries may leak",
			"operation_id", operationID, "tenant_id", tenantID, "kind", string(kind), "error", err)
		return fmt.Errorf("%w: begin %s: %v", domain.ErrRegistryWrite, operationID, err)
	}
	if !inserted {
		r.logger.Debug("bulk marker already present", "operation_id", operationID, "tenant_id", tenantID)
	}
	return nil
}

// End removes the tenant's marker. A marker owned by another tenant is left
// alone. Failures are logged and left for Sweep.
func (r *BulkRegistry) End(ctx context.Context, tenantID, operationID string) {
	removed, err := r.store.Delete(ctx, tenantID, operationID)
	if err != nil {
		r.logger.Warn("bulk marker end failed; marker left for sweep",
			"operation_id", operationID, "tenant_id", tenantID, "error", err)
		return
	}
	if !removed {
		r.logger.Debug("bulk marker not held by tenant", "operation_id", operationID, "tenant_id", tenantID)
	}
}

// IsActive reports whether any non-expired marker exists for the tenant.
func (r *BulkRegistry) IsActive(ctx context.Context, tenantID string) (bool, error) {
	since := r.clock.Now().UTC().Add(-r.staleness)
	active, err := r.store.ExistsSince(ctx, tenantID, since)
	if err != nil {
		return false, fmt.Errorf("check bulk markers for %s: %w", tenantID, err)
	}
	return active, nil
}

// Active lists the tenant's live markers.
func (r *BulkRegistry) Active(ctx context.Context, tenantID string) ([]domain.BulkOperationMarker, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return nil, err
	}
	since := r.clock.Now().UTC().Add(-r.staleness)
	markers, err := r.store.Active(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("list bulk markers for %s: %w", tenantID, err)
	}
	return markers, nil
}

// Sweep deletes markers older than staleness and returns how many went.
func (r *BulkRegistry) Sweep(ctx context.Context, staleness time.Duration) (int64, error) {
	if staleness <= 0 {
		staleness = r.staleness
	}
	cutoff := r.clock.Now().UTC().Add(-staleness)
	n, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep bulk markers: %w", err)
	}
	if n > 0 {
		r.logger.Info("swept stale bulk markers", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (r *BulkRegistry) Staleness() time.Duration {
	return r.staleness
}
