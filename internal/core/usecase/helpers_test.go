package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFormatter(t *testing.T) *Formatter {
	t.Helper()
	catalog, err := LoadLocaleCatalog("en")
	require.NoError(t, err)
	return NewFormatter(catalog, DefaultNameThreshold)
}

// memSink is an in-memory log sink. failures makes the next N appends fail.
// When hold is set, each append signals entered and waits for hold to close.
type memSink struct {
	mu       sync.Mutex
	entries  []domain.LogEntry
	failures int
	calls    int

	entered chan struct{}
	hold    chan struct{}
}

func (s *memSink) Append(_ context.Context, entry domain.LogEntry) error {
	if s.hold != nil {
		s.entered <- struct{}{}
		<-s.hold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memSink) Entries() []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogEntry(nil), s.entries...)
}

func (s *memSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *memSink) ByAction(kind domain.ActionKind) []domain.LogEntry {
	var out []domain.LogEntry
	for _, e := range s.Entries() {
		if e.Action == kind {
			out = append(out, e)
		}
	}
	return out
}

// memMarkerStore mimics the shared marker table.
type memMarkerStore struct {
	mu      sync.Mutex
	markers map[string]domain.BulkOperationMarker

	insertErr error
	deleteErr error
	existsErr error
}

func newMemMarkerStore() *memMarkerStore {
	return &memMarkerStore{markers: make(map[string]domain.BulkOperationMarker)}
}

func (s *memMarkerStore) InsertIfAbsent(_ context.Context, m domain.BulkOperationMarker) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if existing, ok := s.markers[m.OperationID]; ok {
		if existing.TenantID != m.TenantID {
			return false, domain.ErrConflict
		}
		return false, nil
	}
	s.markers[m.OperationID] = m
	return true, nil
}

func (s *memMarkerStore) Delete(ctx context.Context, tenantID, operationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	m, ok := s.markers[operationID]
	if !ok || m.TenantID != tenantID {
		return false, nil
	}
	delete(s.markers, operationID)
	return true, nil
}

func (s *memMarkerStore) ExistsSince(_ context.Context, tenantID string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, m := range s.markers {
		if m.TenantID == tenantID && m.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memMarkerStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.markers {
		if !m.CreatedAt.After(cutoff) {
			delete(s.markers, id)
			n++
		}
	}
	return n, nil
}

func (s *memMarkerStore) Active(_ context.Context, tenantID string, since time.Time) ([]domain.BulkOperationMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BulkOperationMarker
	for _, m := range s.markers {
		if m.TenantID == tenantID && m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memMarkerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

type memComponentStore struct {
	mu   sync.Mutex
	rows map[string]domain.Component
}

func newMemComponentStore() *memComponentStore {
	return &memComponentStore{rows: make(map[string]domain.Component)}
}

func (s *memComponentStore) Create(_ context.Context, c domain.Component) (domain.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := c.TenantID + "/" + c.ID
	if _, ok := s.rows[k]; ok {
		return domain.Component{}, domain.ErrConflict
	}
	s.rows[k] = c
	return c, nil
}

func (s *memComponentStore) Update(_ context.Context, c domain.Component) (domain.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := c.TenantID + "/" + c.ID
	if _, ok := s.rows[k]; !ok {
		return domain.Component{}, domain.ErrNotFound
	}
	s.rows[k] = c
	return c, nil
}

func (s *memComponentStore) Delete(_ context.Context, tenantID, id string) (domain.Component, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantID + "/" + id
	c, ok := s.rows[k]
	delete(s.rows, k)
	return c, ok, nil
}

func (s *memComponentStore) Get(_ context.Context, tenantID, id string) (domain.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[tenantID+"/"+id]
	if !ok {
		return domain.Component{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *memComponentStore) List(_ context.Context, filter domain.ComponentFilter) ([]domain.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Component
	for _, c := range s.rows {
		if c.TenantID != filter.TenantID {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.AfterID != "" && c.ID <= filter.AfterID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
