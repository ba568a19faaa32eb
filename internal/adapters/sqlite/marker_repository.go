package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/activitylog/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

type bulkMarkerModel struct {
	OperationID string    `gorm:"column:operation_id;primaryKey"`
	TenantID    string    `gorm:"column:tenant_id;not null"`
	Kind        string    `gorm:"column:kind;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (bulkMarkerModel) TableName() string {
	return "bulk_operation_markers"
}

// MarkerRepository keeps bulk operation markers in the shared database file,
// so every connection and every process on it sees them.
type MarkerRepository struct {
	db *gormsqlite.DB
}

func NewMarkerRepository(db *gormsqlite.DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

func (r *MarkerRepository) InsertIfAbsent(ctx context.Context, marker domain.BulkOperationMarker) (bool, error) {
	var inserted bool
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "operation_id"}},
			DoNothing: true,
		}).Create(&bulkMarkerModel{
			OperationID: marker.OperationID,
			TenantID:    marker.TenantID,
			Kind:        string(marker.Kind),
			CreatedAt:   marker.CreatedAt.UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			inserted = true
			return nil
		}

		var existing bulkMarkerModel
		if err := tx.Where("operation_id = ?", marker.OperationID).Take(&existing).Error; err != nil {
			return err
		}
		if existing.TenantID != marker.TenantID {
			return fmt.Errorf("%w: operation %s belongs to another tenant", domain.ErrConflict, marker.OperationID)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert bulk marker: %w", err)
	}
	return inserted, nil
}

func (r *MarkerRepository) Delete(ctx context.Context, tenantID, operationID string) (bool, error) {
	var removed bool
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("operation_id = ? AND tenant_id = ?", operationID, tenantID).Delete(&bulkMarkerModel{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete bulk marker: %w", err)
	}
	return removed, nil
}

func (r *MarkerRepository) ExistsSince(ctx context.Context, tenantID string, since time.Time) (bool, error) {
	var count int64
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&bulkMarkerModel{}).
			Where("tenant_id = ? AND created_at > ?", tenantID, since.UTC()).
			Count(&count).Error
	})
	if err != nil {
		return false, fmt.Errorf("check bulk markers: %w", err)
	}
	return count > 0, nil
}

func (r *MarkerRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("created_at <= ?", cutoff.UTC()).Delete(&bulkMarkerModel{})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep bulk markers: %w", err)
	}
	return n, nil
}

// Active lists live markers, newest first.
func (r *MarkerRepository) Active(ctx context.Context, tenantID string, since time.Time) ([]domain.BulkOperationMarker, error) {
	var rows []bulkMarkerModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("tenant_id = ? AND created_at > ?", tenantID, since.UTC()).
			Order("created_at DESC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list bulk markers: %w", err)
	}
	out := make([]domain.BulkOperationMarker, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BulkOperationMarker{
			OperationID: row.OperationID,
			TenantID:    row.TenantID,
			Kind:        domain.OperationKind(row.Kind),
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}
