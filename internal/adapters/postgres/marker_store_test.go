package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestMarkerStore_InsertIfAbsent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	marker := domain.BulkOperationMarker{OperationID: "op1", TenantID: "t1", Kind: domain.OperationImport, CreatedAt: now}

	tests := []struct {
		name         string
		setup        func(mock pgxmock.PgxPoolIface)
		wantInserted bool
		wantErr      error
	}{
		{
			name: "inserted",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO bulk_operation_markers .* ON CONFLICT \(operation_id\) DO NOTHING`).
					WithArgs("op1", "t1", "import", now).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			wantInserted: true,
		},
		{
			name: "already present for same tenant",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO bulk_operation_markers`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 0))
				mock.ExpectQuery(`SELECT tenant_id FROM bulk_operation_markers WHERE operation_id = \$1`).
					WithArgs("op1").
					WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).AddRow("t1"))
			},
			wantInserted: false,
		},
		{
			name: "held by another tenant",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO bulk_operation_markers`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 0))
				mock.ExpectQuery(`SELECT tenant_id FROM bulk_operation_markers`).
					WithArgs("op1").
					WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).AddRow("t2"))
			},
			wantErr: domain.ErrConflict,
		},
		{
			name: "owner removed between statements",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO bulk_operation_markers`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 0))
				mock.ExpectQuery(`SELECT tenant_id FROM bulk_operation_markers`).
					WithArgs("op1").
					WillReturnError(pgx.ErrNoRows)
				mock.ExpectExec(`INSERT INTO bulk_operation_markers`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			wantInserted: true,
		},
		{
			name: "check violation",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO bulk_operation_markers`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: "23514"})
			},
			wantErr: domain.ErrInvalidOperationKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)

			inserted, err := NewMarkerStore(mock).InsertIfAbsent(context.Background(), marker)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantInserted, inserted)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMarkerStore_Delete(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM bulk_operation_markers WHERE operation_id = \$1 AND tenant_id = \$2`).
		WithArgs("op1", "t1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	removed, err := NewMarkerStore(mock).Delete(context.Background(), "t1", "op1")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerStore_DeleteOtherTenant(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM bulk_operation_markers WHERE operation_id = \$1 AND tenant_id = \$2`).
		WithArgs("op1", "t2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err := NewMarkerStore(mock).Delete(context.Background(), "t2", "op1")
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerStore_ExistsSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 9, 55, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) > 0 FROM bulk_operation_markers WHERE tenant_id = \$1 AND created_at > \$2`).
		WithArgs("t1", since).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := NewMarkerStore(mock).ExistsSince(context.Background(), "t1", since)
	require.NoError(t, err)
	assert.True(t, active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerStore_ExistsSinceError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := NewMarkerStore(mock).ExistsSince(context.Background(), "t1", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup markers for t1")
}

func TestMarkerStore_DeleteOlderThan(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM bulk_operation_markers WHERE created_at <= \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := NewMarkerStore(mock).DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerStore_Active(t *testing.T) {
	since := time.Date(2026, 3, 1, 9, 55, 0, 0, time.UTC)
	created := since.Add(2 * time.Minute)

	mock := newMock(t)
	mock.ExpectQuery(`SELECT operation_id, tenant_id, kind, created_at FROM bulk_operation_markers`).
		WithArgs("t1", since).
		WillReturnRows(pgxmock.NewRows([]string{"operation_id", "tenant_id", "kind", "created_at"}).
			AddRow("op1", "t1", "delete", created))

	markers, err := NewMarkerStore(mock).Active(context.Background(), "t1", since)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, domain.OperationDelete, markers[0].Kind)
	assert.Equal(t, created, markers[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
