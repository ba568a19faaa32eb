package domain

import (
	"encoding/json"
	"time"
)

type ActionKind string

const (
	ActionCreated           ActionKind = "created"
	ActionUpdated           ActionKind = "updated"
	ActionDeleted           ActionKind = "deleted"
	ActionItemsAdded        ActionKind = "items_added"
	ActionItemsRemoved      ActionKind = "items_removed"
	ActionParametersChanged ActionKind = "parameters_changed"
	ActionBulkImport        ActionKind = "bulk_import"
	ActionBulkDelete        ActionKind = "bulk_delete"
)

func (k ActionKind) Validate() error {
	switch k {
	case ActionCreated, ActionUpdated, ActionDeleted,
		ActionItemsAdded, ActionItemsRemoved, ActionParametersChanged,
		ActionBulkImport, ActionBulkDelete:
		return nil
	default:
		return ErrInvalidAction
	}
}

// LogEntry is the append-only unit written to the activity log. One entry is
// produced per logical user action.
type LogEntry struct {
	ID         string
	TenantID   string
	ActorID    string
	ContextID  string
	EntityType string
	Action     ActionKind
	Summary    string
	Metadata   json.RawMessage
	CreatedAt  time.Time
}

// Payload carries what the formatter needs to render a summary.
type Payload struct {
	Locale  string
	Name    string
	Source  string
	Count   int
	Changes []FieldDelta
	Items   []ItemRef
}

type ActivityFilter struct {
	TenantID  string
	ContextID string
	Action    ActionKind
	AfterID   int64
	Limit     int
}

// StoredLogEntry is a LogEntry as read back from the store.
type StoredLogEntry struct {
	Seq int64
	LogEntry
}
