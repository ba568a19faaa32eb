package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

const markersTable = "bulk_operation_markers"

// MarkerStore keeps bulk operation markers in Postgres, for deployments where
// several service instances share one registry.
type MarkerStore struct {
	q Querier
}

func NewMarkerStore(q Querier) *MarkerStore {
	return &MarkerStore{q: q}
}

// insertAttempts bounds the insert/owner-lookup loop when a conflicting
// marker is removed between the two statements.
const insertAttempts = 2

func (s *MarkerStore) InsertIfAbsent(ctx context.Context, marker domain.BulkOperationMarker) (bool, error) {
	insert, insertArgs, err := builder().
		Insert(markersTable).
		Columns("operation_id", "tenant_id", "kind", "created_at").
		Values(marker.OperationID, marker.TenantID, string(marker.Kind), marker.CreatedAt.UTC()).
		Suffix("ON CONFLICT (operation_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, mapError(err, "build insert marker")
	}
	owner, ownerArgs, err := builder().
		Select("tenant_id").
		From(markersTable).
		Where(squirrel.Eq{"operation_id": marker.OperationID}).
		ToSql()
	if err != nil {
		return false, mapError(err, "build marker owner lookup")
	}

	for attempt := 0; attempt < insertAttempts; attempt++ {
		tag, err := s.q.Exec(ctx, insert, insertArgs...)
		if err != nil {
			return false, mapError(err, "insert marker "+marker.OperationID)
		}
		if tag.RowsAffected() > 0 {
			return true, nil
		}

		var tenantID string
		err = s.q.QueryRow(ctx, owner, ownerArgs...).Scan(&tenantID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return false, mapError(err, "lookup marker owner "+marker.OperationID)
		}
		if tenantID != marker.TenantID {
			return false, fmt.Errorf("%w: operation %s belongs to another tenant", domain.ErrConflict, marker.OperationID)
		}
		return false, nil
	}
	return false, fmt.Errorf("insert marker %s: concurrent removal", marker.OperationID)
}

func (s *MarkerStore) Delete(ctx context.Context, tenantID, operationID string) (bool, error) {
	query, args, err := builder().
		Delete(markersTable).
		Where(squirrel.Eq{"operation_id": operationID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return false, mapError(err, "build delete marker")
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return false, mapError(err, "delete marker "+operationID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MarkerStore) ExistsSince(ctx context.Context, tenantID string, since time.Time) (bool, error) {
	query, args, err := builder().
		Select("COUNT(*) > 0").
		From(markersTable).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where(squirrel.Gt{"created_at": since.UTC()}).
		ToSql()
	if err != nil {
		return false, mapError(err, "build marker lookup")
	}
	var exists bool
	if err := s.q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, mapError(err, "lookup markers for "+tenantID)
	}
	return exists, nil
}

func (s *MarkerStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := builder().
		Delete(markersTable).
		Where(squirrel.LtOrEq{"created_at": cutoff.UTC()}).
		ToSql()
	if err != nil {
		return 0, mapError(err, "build sweep markers")
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "sweep markers")
	}
	return tag.RowsAffected(), nil
}

func (s *MarkerStore) Active(ctx context.Context, tenantID string, since time.Time) ([]domain.BulkOperationMarker, error) {
	query, args, err := builder().
		Select("operation_id", "tenant_id", "kind", "created_at").
		From(markersTable).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where(squirrel.Gt{"created_at": since.UTC()}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, mapError(err, "build list markers")
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list markers for "+tenantID)
	}
	defer rows.Close()

	var out []domain.BulkOperationMarker
	for rows.Next() {
		var (
			m    domain.BulkOperationMarker
			kind string
		)
		if err := rows.Scan(&m.OperationID, &m.TenantID, &kind, &m.CreatedAt); err != nil {
			return nil, mapError(err, "scan marker")
		}
		m.Kind = domain.OperationKind(kind)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate markers")
	}
	return out, nil
}
