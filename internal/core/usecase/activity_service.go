package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

const DefaultTeardownTimeout = 5 * time.Second

// ActivityService turns the edit and item stream of an editing context into
// log entries. Parameter edits are only flushed by Flush, Close, Teardown or
// Shutdown; item batches additionally flush when their window expires.
type ActivityService struct {
	changes   *ChangeAccumulator
	batches   *BatchScheduler
	formatter *Formatter
	activity  *ActivityLogger
	logger    *slog.Logger

	teardownTimeout time.Duration

	contexts  sync.Map // domain.ContextKey -> *openContext
	teardowns sync.WaitGroup
}

// openContext is one registration of a context. Every Open stores a fresh
// pointer so a teardown only forgets the registration it was issued against.
type openContext struct {
	ec domain.EditingContext
}

type ActivityServiceConfig struct {
	Clock           clockwork.Clock
	BatchWindow     time.Duration
	TeardownTimeout time.Duration
	Logger          *slog.Logger
}

type ChangeInput struct {
	FieldKey string
	Label    string
	OldValue any
	NewValue any
}

func NewActivityService(formatter *Formatter, activity *ActivityLogger, cfg ActivityServiceConfig) *ActivityService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = DefaultTeardownTimeout
	}
	s := &ActivityService{
		changes:         NewChangeAccumulator(),
		formatter:       formatter,
		activity:        activity,
		logger:          cfg.Logger,
		teardownTimeout: cfg.TeardownTimeout,
	}
	s.batches = NewBatchScheduler(cfg.Clock, cfg.BatchWindow, s.onBatchExpired)
	return s
}

// Open registers an editing context. Opening an already open context refreshes
// its actor, entity type and locale without touching pending state.
func (s *ActivityService) Open(_ context.Context, ec domain.EditingContext) error {
	if err := ec.Validate(); err != nil {
		return err
	}
	s.contexts.Store(ec.Key, &openContext{ec: ec})
	return nil
}

func (s *ActivityService) IsOpen(key domain.ContextKey) bool {
	_, ok := s.contexts.Load(key)
	return ok
}

func (s *ActivityService) RecordChange(_ context.Context, key domain.ContextKey, in ChangeInput) error {
	if !s.IsOpen(key) {
		return domain.ErrContextNotOpen
	}
	if err := domain.ValidateKey(in.FieldKey); err != nil {
		return err
	}
	s.changes.RecordChange(key, in.FieldKey, in.Label, in.OldValue, in.NewValue)
	return nil
}

func (s *ActivityService) AddItem(_ context.Context, key domain.ContextKey, item domain.ItemRef) error {
	if !s.IsOpen(key) {
		return domain.ErrContextNotOpen
	}
	if err := domain.ValidateKey(item.ID); err != nil {
		return err
	}
	s.batches.Add(key, item)
	return nil
}

// Flush emits at most one parameters_changed and one items_added entry for the
// context and clears its pending state. With nothing pending it does nothing.
func (s *ActivityService) Flush(ctx context.Context, key domain.ContextKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	ec := s.lookup(key)
	emitted := 0
	if s.flushChanges(ctx, ec) {
		emitted++
	}
	if s.flushItems(ctx, ec) {
		emitted++
	}
	return emitted, nil
}

// Close is the explicit close/save path: it flushes synchronously and then
// forgets the context.
func (s *ActivityService) Close(ctx context.Context, key domain.ContextKey) (int, error) {
	n, err := s.Flush(ctx, key)
	if err != nil {
		return 0, err
	}
	s.contexts.Delete(key)
	return n, nil
}

// Teardown is the forced path (navigation away, unmount, dropped client). The
// flush runs in the background on its own deadline and is not awaited. A
// context reopened before the flush finishes stays open.
func (s *ActivityService) Teardown(key domain.ContextKey) {
	current, _ := s.contexts.Load(key)
	s.teardowns.Add(1)
	go func() {
		defer s.teardowns.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.teardownTimeout)
		defer cancel()
		if _, err := s.Flush(ctx, key); err != nil {
			s.logger.Warn("teardown flush failed", "context", key.String(), "error", err)
		}
		if current != nil && !s.contexts.CompareAndDelete(key, current) {
			s.logger.Debug("context reopened during teardown", "context", key.String())
		}
	}()
}

// Wait blocks until every pending teardown has finished.
func (s *ActivityService) Wait() {
	s.teardowns.Wait()
}

// Shutdown tears down every open context and waits for the flushes or ctx.
func (s *ActivityService) Shutdown(ctx context.Context) error {
	s.contexts.Range(func(k, _ any) bool {
		s.Teardown(k.(domain.ContextKey))
		return true
	})
	done := make(chan struct{})
	go func() {
		s.teardowns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports touched fields and queued items for a context.
func (s *ActivityService) Pending(key domain.ContextKey) (fields int, items int) {
	return s.changes.Pending(key), s.batches.Pending(key)
}

func (s *ActivityService) onBatchExpired(key domain.ContextKey) {
	ctx, cancel := context.WithTimeout(context.Background(), s.teardownTimeout)
	defer cancel()
	s.flushItems(ctx, s.lookup(key))
}

func (s *ActivityService) lookup(key domain.ContextKey) domain.EditingContext {
	if v, ok := s.contexts.Load(key); ok {
		return v.(*openContext).ec
	}
	return domain.EditingContext{Key: key}
}

func (s *ActivityService) flushChanges(ctx context.Context, ec domain.EditingContext) bool {
	delta := s.changes.Take(ec.Key)
	if len(delta) == 0 {
		return false
	}
	return s.emit(ctx, ec, domain.ActionParametersChanged, domain.Payload{
		Locale:  ec.Locale,
		Changes: delta,
	}, map[string]any{"changes": delta})
}

func (s *ActivityService) flushItems(ctx context.Context, ec domain.EditingContext) bool {
	items := s.batches.Drain(ec.Key)
	if len(items) == 0 {
		return false
	}
	return s.emit(ctx, ec, domain.ActionItemsAdded, domain.Payload{
		Locale: ec.Locale,
		Count:  len(items),
		Items:  items,
	}, map[string]any{"count": len(items), "items": items})
}

func (s *ActivityService) emit(ctx context.Context, ec domain.EditingContext, kind domain.ActionKind, p domain.Payload, meta map[string]any) bool {
	summary, err := s.formatter.Format(kind, p)
	if err != nil {
		s.logger.Warn("format activity summary", "context", ec.Key.String(), "action", string(kind), "error", err)
		return false
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		s.logger.Warn("encode activity metadata", "context", ec.Key.String(), "action", string(kind), "error", err)
		metadata = nil
	}
	return s.activity.Record(ctx, domain.LogEntry{
		TenantID:   ec.Key.TenantID,
		ActorID:    ec.ActorID,
		ContextID:  ec.Key.ContextID,
		EntityType: ec.EntityType,
		Action:     kind,
		Summary:    summary,
		Metadata:   metadata,
	})
}
