package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
	"github.com/atvirokodosprendimai/activitylog/internal/core/ports"
)

// ComponentService performs catalog row mutations. Every single-row write is
// followed by an individual entry through the suppression gate; bulk imports
// and deletes bracket their rows with a registry marker and write one summary
// entry at the end.
type ComponentService struct {
	store     ports.ComponentStore
	gate      *SuppressionGate
	registry  *BulkRegistry
	activity  *ActivityLogger
	formatter *Formatter
	logger    *slog.Logger
}

func NewComponentService(store ports.ComponentStore, gate *SuppressionGate, registry *BulkRegistry, activity *ActivityLogger, formatter *Formatter, logger *slog.Logger) *ComponentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComponentService{store: store, gate: gate, registry: registry, activity: activity, formatter: formatter, logger: logger}
}

type Actor struct {
	ID     string
	Locale string
}

type BulkImportItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type BulkImportRequest struct {
	OperationID string
	TenantID    string
	Source      string
	Items       []BulkImportItem
}

type BulkDeleteRequest struct {
	OperationID string
	TenantID    string
	IDs         []string
}

type BulkResult struct {
	OperationID string
	Count       int
	Logged      bool
}

func (s *ComponentService) Create(ctx context.Context, c domain.Component, actor Actor) (domain.Component, error) {
	if err := c.Validate(); err != nil {
		return domain.Component{}, err
	}
	created, err := s.store.Create(ctx, c)
	if err != nil {
		return domain.Component{}, err
	}
	s.logRow(ctx, created, domain.ActionCreated, actor)
	return created, nil
}

func (s *ComponentService) Update(ctx context.Context, c domain.Component, actor Actor) (domain.Component, error) {
	if err := c.Validate(); err != nil {
		return domain.Component{}, err
	}
	updated, err := s.store.Update(ctx, c)
	if err != nil {
		return domain.Component{}, err
	}
	s.logRow(ctx, updated, domain.ActionUpdated, actor)
	return updated, nil
}

func (s *ComponentService) Delete(ctx context.Context, tenantID, id string, actor Actor) (bool, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return false, err
	}
	if err := domain.ValidateKey(id); err != nil {
		return false, err
	}
	before, deleted, err := s.store.Delete(ctx, tenantID, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logRow(ctx, before, domain.ActionDeleted, actor)
	}
	return deleted, nil
}

func (s *ComponentService) Get(ctx context.Context, tenantID, id string) (domain.Component, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return domain.Component{}, err
	}
	if err := domain.ValidateKey(id); err != nil {
		return domain.Component{}, err
	}
	return s.store.Get(ctx, tenantID, id)
}

func (s *ComponentService) List(ctx context.Context, filter domain.ComponentFilter) ([]domain.Component, error) {
	if err := domain.ValidateKey(filter.TenantID); err != nil {
		return nil, err
	}
	if filter.Category != "" {
		if err := domain.ValidateCategory(filter.Category); err != nil {
			return nil, err
		}
	}
	if filter.AfterID != "" {
		if err := domain.ValidateKey(filter.AfterID); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.store.List(ctx, filter)
}

// BulkImport creates every item under an import marker and writes a single
// bulk_import entry for the rows that were created.
func (s *ComponentService) BulkImport(ctx context.Context, req BulkImportRequest, actor Actor) (BulkResult, error) {
	if err := domain.ValidateKey(req.TenantID); err != nil {
		return BulkResult{}, err
	}
	opID := operationID(req.OperationID)

	if err := s.begin(ctx, opID, req.TenantID, domain.OperationImport); err != nil {
		return BulkResult{OperationID: opID}, err
	}
	created := 0
	var runErr error
	for _, item := range req.Items {
		_, err := s.Create(ctx, domain.Component{
			TenantID: req.TenantID,
			ID:       item.ID,
			Name:     item.Name,
			Category: item.Category,
			Data:     item.Data,
		}, actor)
		if err != nil {
			runErr = fmt.Errorf("bulk import %s: %w", item.ID, err)
			break
		}
		created++
	}
	// The marker and summary outlive a cancelled request.
	cleanup := context.WithoutCancel(ctx)
	s.registry.End(cleanup, req.TenantID, opID)

	logged := s.logBulk(cleanup, req.TenantID, opID, domain.ActionBulkImport, domain.Payload{
		Locale: actor.Locale,
		Count:  created,
		Source: req.Source,
	}, actor, map[string]any{"operation_id": opID, "count": created, "source": req.Source})
	return BulkResult{OperationID: opID, Count: created, Logged: logged}, runErr
}

// BulkDelete removes ids one row at a time under a delete marker and writes a
// single bulk_delete entry for the rows that existed.
func (s *ComponentService) BulkDelete(ctx context.Context, req BulkDeleteRequest, actor Actor) (BulkResult, error) {
	if err := domain.ValidateKey(req.TenantID); err != nil {
		return BulkResult{}, err
	}
	opID := operationID(req.OperationID)

	if err := s.begin(ctx, opID, req.TenantID, domain.OperationDelete); err != nil {
		return BulkResult{OperationID: opID}, err
	}
	deletedCount := 0
	var runErr error
	for _, id := range req.IDs {
		deleted, err := s.Delete(ctx, req.TenantID, id, actor)
		if err != nil {
			runErr = fmt.Errorf("bulk delete %s: %w", id, err)
			break
		}
		if deleted {
			deletedCount++
		}
	}
	cleanup := context.WithoutCancel(ctx)
	s.registry.End(cleanup, req.TenantID, opID)

	logged := s.logBulk(cleanup, req.TenantID, opID, domain.ActionBulkDelete, domain.Payload{
		Locale: actor.Locale,
		Count:  deletedCount,
	}, actor, map[string]any{"operation_id": opID, "count": deletedCount, "ids": req.IDs})
	return BulkResult{OperationID: opID, Count: deletedCount, Logged: logged}, runErr
}

// begin fails only when opID belongs to another tenant. Other registry
// failures leave suppression best-effort and the rows still get written.
func (s *ComponentService) begin(ctx context.Context, opID, tenantID string, kind domain.OperationKind) error {
	err := s.registry.Begin(ctx, opID, tenantID, kind)
	if errors.Is(err, domain.ErrConflict) {
		return err
	}
	if err != nil {
		s.logger.Warn("bulk operation running without suppression", "operation_id", opID, "error", err)
	}
	return nil
}

func (s *ComponentService) logRow(ctx context.Context, c domain.Component, kind domain.ActionKind, actor Actor) {
	summary, err := s.formatter.Format(kind, domain.Payload{Locale: actor.Locale, Name: c.Name})
	if err != nil {
		s.logger.Warn("format component entry", "component_id", c.ID, "error", err)
		return
	}
	metadata, _ := json.Marshal(map[string]any{"component_id": c.ID, "name": c.Name, "category": c.Category})
	s.gate.Emit(ctx, domain.LogEntry{
		TenantID:   c.TenantID,
		ActorID:    actor.ID,
		ContextID:  c.ID,
		EntityType: "component",
		Action:     kind,
		Summary:    summary,
		Metadata:   metadata,
	})
}

// logBulk bypasses the gate: the summary must be written even if another bulk
// operation for the tenant is still running.
func (s *ComponentService) logBulk(ctx context.Context, tenantID, opID string, kind domain.ActionKind, p domain.Payload, actor Actor, meta map[string]any) bool {
	if p.Count == 0 {
		return false
	}
	summary, err := s.formatter.Format(kind, p)
	if err != nil {
		s.logger.Warn("format bulk entry", "operation_id", opID, "error", err)
		return false
	}
	metadata, _ := json.Marshal(meta)
	return s.activity.Record(ctx, domain.LogEntry{
		TenantID:   tenantID,
		ActorID:    actor.ID,
		EntityType: "component",
		Action:     kind,
		Summary:    summary,
		Metadata:   metadata,
	})
}

func operationID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
