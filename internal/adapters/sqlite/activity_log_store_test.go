package sqlite

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

func TestActivityLogStoreAppendWritesOutbox(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	store := NewActivityLogStore(db)

	entry := domain.LogEntry{
		ID:         "entry-1",
		TenantID:   "t1",
		ActorID:    "user-1",
		ContextID:  "quote-1",
		EntityType: "quotation",
		Action:     domain.ActionParametersChanged,
		Summary:    "Changed usdRate: 3.7 → 3.75",
		Metadata:   json.RawMessage(`{"changes":[]}`),
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	assertTableCount(t, ctx, wdb, "activity_logs", 1)
	assertTableCount(t, ctx, wdb, "outbox_events", 1)

	outbox := NewOutboxRepository(db)
	pending, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending event, got %d", len(pending))
	}
	if pending[0].Topic != "activity.t1.activity.parameters_changed" {
		t.Fatalf("unexpected topic: %s", pending[0].Topic)
	}
	var env domain.EventEnvelope
	if err := json.Unmarshal(pending[0].PayloadJSON, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.ContextID != "quote-1" || env.Actor != "user-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestActivityLogStoreOutboxFailureRollsBackEntry(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	store := NewActivityLogStore(db)

	if _, err := wdb.ExecContext(ctx, `
		CREATE TRIGGER trg_fail_outbox_insert
		BEFORE INSERT ON outbox_events
		BEGIN
			SELECT RAISE(ABORT, 'forced outbox failure');
		END;
	`); err != nil {
		t.Fatalf("create failure trigger: %v", err)
	}

	err := store.Append(ctx, domain.LogEntry{TenantID: "t1", Action: domain.ActionCreated, Summary: "Created A"})
	if err == nil {
		t.Fatalf("expected append error")
	}
	if !strings.Contains(err.Error(), "forced outbox failure") {
		t.Fatalf("expected forced outbox failure, got: %v", err)
	}

	assertTableCount(t, ctx, wdb, "activity_logs", 0)
	assertTableCount(t, ctx, wdb, "outbox_events", 0)
}

func TestActivityLogStoreListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	store := NewActivityLogStore(db)

	seed := []domain.LogEntry{
		{TenantID: "t1", ContextID: "q1", Action: domain.ActionParametersChanged, Summary: "one"},
		{TenantID: "t1", ContextID: "q1", Action: domain.ActionItemsAdded, Summary: "two"},
		{TenantID: "t1", ContextID: "q2", Action: domain.ActionParametersChanged, Summary: "three"},
		{TenantID: "t2", ContextID: "q1", Action: domain.ActionParametersChanged, Summary: "other tenant"},
	}
	for _, e := range seed {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := store.List(ctx, domain.ActivityFilter{TenantID: "t1", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Summary != "three" {
		t.Fatalf("expected newest first, got %q", all[0].Summary)
	}
	if string(all[0].Metadata) != "{}" {
		t.Fatalf("expected empty metadata object, got %s", all[0].Metadata)
	}

	byContext, err := store.List(ctx, domain.ActivityFilter{TenantID: "t1", ContextID: "q1", Action: domain.ActionItemsAdded, Limit: 10})
	if err != nil {
		t.Fatalf("list by context: %v", err)
	}
	if len(byContext) != 1 || byContext[0].Summary != "two" {
		t.Fatalf("unexpected filtered entries: %+v", byContext)
	}

	page, err := store.List(ctx, domain.ActivityFilter{TenantID: "t1", AfterID: all[0].Seq, Limit: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].Summary != "two" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestOutboxRepositoryMarks(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	store := NewActivityLogStore(db)
	outbox := NewOutboxRepository(db)

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, domain.LogEntry{TenantID: "t1", Action: domain.ActionCreated, Summary: "x"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	pending, err := outbox.FetchPending(ctx, 10)
	if err != nil || len(pending) != 3 {
		t.Fatalf("fetch pending: %v (%d)", err, len(pending))
	}

	if err := outbox.MarkDispatched(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	later := time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano)
	if err := outbox.MarkFailed(ctx, pending[1].ID, 1, later, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := outbox.MarkDead(ctx, pending[2].ID, 5, "gone"); err != nil {
		t.Fatalf("mark dead: %v", err)
	}

	again, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected nothing due, got %d", len(again))
	}

	var dead int
	if err := wdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox_events WHERE status = 'dead'").Scan(&dead); err != nil {
		t.Fatalf("count dead: %v", err)
	}
	if dead != 1 {
		t.Fatalf("expected one dead event, got %d", dead)
	}
}
