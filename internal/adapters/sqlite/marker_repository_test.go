package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

func TestMarkerRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	repo := NewMarkerRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	marker := domain.BulkOperationMarker{OperationID: "op1", TenantID: "tenantX", Kind: domain.OperationDelete, CreatedAt: now}
	inserted, err := repo.InsertIfAbsent(ctx, marker)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	marker.CreatedAt = now.Add(time.Minute)
	inserted, err = repo.InsertIfAbsent(ctx, marker)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate operation id to be ignored")
	}
	assertTableCount(t, ctx, wdb, "bulk_operation_markers", 1)

	active, err := repo.ExistsSince(ctx, "tenantX", now.Add(-5*time.Minute))
	if err != nil || !active {
		t.Fatalf("expected active marker: active=%v err=%v", active, err)
	}
	active, err = repo.ExistsSince(ctx, "tenantY", now.Add(-5*time.Minute))
	if err != nil || active {
		t.Fatalf("expected no marker for other tenant: active=%v err=%v", active, err)
	}
	// The kept timestamp is the first one.
	active, err = repo.ExistsSince(ctx, "tenantX", now.Add(30*time.Second))
	if err != nil || active {
		t.Fatalf("expected marker to be older than cutoff: active=%v err=%v", active, err)
	}

	list, err := repo.Active(ctx, "tenantX", now.Add(-time.Minute))
	if err != nil || len(list) != 1 || list[0].Kind != domain.OperationDelete {
		t.Fatalf("unexpected active list: %+v err=%v", list, err)
	}

	removed, err := repo.Delete(ctx, "tenantX", "op1")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	removed, err = repo.Delete(ctx, "tenantX", "op1")
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestMarkerRepositoryTenantOwnership(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	repo := NewMarkerRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	owned := domain.BulkOperationMarker{OperationID: "shared", TenantID: "tenantA", Kind: domain.OperationImport, CreatedAt: now}
	if _, err := repo.InsertIfAbsent(ctx, owned); err != nil {
		t.Fatalf("seed: %v", err)
	}

	foreign := owned
	foreign.TenantID = "tenantB"
	inserted, err := repo.InsertIfAbsent(ctx, foreign)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for foreign tenant, got inserted=%v err=%v", inserted, err)
	}

	removed, err := repo.Delete(ctx, "tenantB", "shared")
	if err != nil || removed {
		t.Fatalf("foreign delete: removed=%v err=%v", removed, err)
	}
	assertTableCount(t, ctx, wdb, "bulk_operation_markers", 1)

	active, err := repo.ExistsSince(ctx, "tenantA", now.Add(-time.Minute))
	if err != nil || !active {
		t.Fatalf("expected owner marker to survive: active=%v err=%v", active, err)
	}
	active, err = repo.ExistsSince(ctx, "tenantB", now.Add(-time.Minute))
	if err != nil || active {
		t.Fatalf("expected no marker for tenantB: active=%v err=%v", active, err)
	}
}

func TestMarkerRepositoryDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	repo := NewMarkerRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{time.Hour, 10 * time.Minute, time.Minute} {
		m := domain.BulkOperationMarker{
			OperationID: "op" + string(rune('a'+i)),
			TenantID:    "t1",
			Kind:        domain.OperationImport,
			CreatedAt:   now.Add(-age),
		}
		if _, err := repo.InsertIfAbsent(ctx, m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := repo.DeleteOlderThan(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 swept markers, got %d", n)
	}
	assertTableCount(t, ctx, wdb, "bulk_operation_markers", 1)
}

func TestMarkerVisibleAcrossConnections(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	writer := NewMarkerRepository(db)
	now := time.Now().UTC()

	if _, err := writer.InsertIfAbsent(ctx, domain.BulkOperationMarker{OperationID: "op1", TenantID: "t1", Kind: domain.OperationImport, CreatedAt: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Reads go through the separate reader pool.
	var count int64
	if err := db.R.WithContext(ctx).Model(&bulkMarkerModel{}).Where("tenant_id = ?", "t1").Count(&count).Error; err != nil {
		t.Fatalf("reader count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected reader to see marker, got %d", count)
	}
}
