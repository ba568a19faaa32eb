package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/activitylog/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

type activityLogModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID    string    `gorm:"column:entry_id;not null"`
	TenantID   string    `gorm:"column:tenant_id;not null"`
	ActorID    string    `gorm:"column:actor_id;not null"`
	ContextID  string    `gorm:"column:context_id;not null"`
	EntityType string    `gorm:"column:entity_type;not null"`
	Action     string    `gorm:"column:action;not null"`
	Summary    string    `gorm:"column:summary;not null"`
	Metadata   string    `gorm:"column:metadata;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (activityLogModel) TableName() string {
	return "activity_logs"
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	TenantID      string     `gorm:"column:tenant_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

// ActivityLogStore is the append-only activity log. Each appended entry gets
// an outbox row in the same transaction.
type ActivityLogStore struct {
	db *gormsqlite.DB
}

func NewActivityLogStore(db *gormsqlite.DB) *ActivityLogStore {
	return &ActivityLogStore{db: db}
}

func (s *ActivityLogStore) Append(ctx context.Context, entry domain.LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	createdAt := entry.CreatedAt.UTC()
	metadata := string(entry.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	return s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		row := activityLogModel{
			EntryID:    entry.ID,
			TenantID:   entry.TenantID,
			ActorID:    entry.ActorID,
			ContextID:  entry.ContextID,
			EntityType: entry.EntityType,
			Action:     string(entry.Action),
			Summary:    entry.Summary,
			Metadata:   metadata,
			CreatedAt:  createdAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert activity log: %w", err)
		}

		envelope := domain.EventEnvelope{
			EventID:       uuid.NewString(),
			EventType:     "activity." + string(entry.Action),
			SchemaVersion: domain.CurrentEventSchemaVersion,
			TenantID:      entry.TenantID,
			ContextID:     entry.ContextID,
			EntityType:    entry.EntityType,
			OccurredAt:    createdAt,
			Actor:         entry.ActorID,
			Payload: mustJSON(map[string]any{
				"seq":      row.ID,
				"entry_id": entry.ID,
				"action":   entry.Action,
				"summary":  entry.Summary,
				"metadata": json.RawMessage(metadata),
			}),
		}
		return insertOutbox(tx.DB, envelope)
	})
}

func (s *ActivityLogStore) List(ctx context.Context, filter domain.ActivityFilter) ([]domain.StoredLogEntry, error) {
	var rows []activityLogModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&activityLogModel{}).Where("tenant_id = ?", filter.TenantID)
		if filter.ContextID != "" {
			query = query.Where("context_id = ?", filter.ContextID)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", string(filter.Action))
		}
		if filter.AfterID > 0 {
			query = query.Where("id < ?", filter.AfterID)
		}
		return query.Order("id DESC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}

	result := make([]domain.StoredLogEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.StoredLogEntry{
			Seq: row.ID,
			LogEntry: domain.LogEntry{
				ID:         row.EntryID,
				TenantID:   row.TenantID,
				ActorID:    row.ActorID,
				ContextID:  row.ContextID,
				EntityType: row.EntityType,
				Action:     domain.ActionKind(row.Action),
				Summary:    row.Summary,
				Metadata:   json.RawMessage(row.Metadata),
				CreatedAt:  row.CreatedAt,
			},
		})
	}
	return result, nil
}

func insertOutbox(tx *gorm.DB, envelope domain.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	outbox := outboxEventModel{
		EventID:       envelope.EventID,
		TenantID:      envelope.TenantID,
		Topic:         "activity." + envelope.TenantID + "." + envelope.EventType,
		PayloadJSON:   string(payload),
		Status:        "pending",
		NextAttemptAt: envelope.OccurredAt,
		CreatedAt:     envelope.OccurredAt,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
