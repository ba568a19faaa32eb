package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
	"github.com/atvirokodosprendimai/activitylog/internal/core/usecase"
)

type openContextRequest struct {
	ContextID  string `json:"context_id"`
	EntityType string `json:"entity_type"`
	Locale     string `json:"locale"`
}

type changeRequest struct {
	FieldKey string `json:"field_key"`
	Label    string `json:"label"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

type recordChangesRequest struct {
	Changes []changeRequest `json:"changes"`
}

type addItemsRequest struct {
	Items []domain.ItemRef `json:"items"`
}

type beginBulkRequest struct {
	OperationID string `json:"operation_id"`
	Kind        string `json:"kind"`
}

type endBulkRequest struct {
	OperationID string `json:"operation_id"`
}

type pendingResponse struct {
	ContextID     string `json:"context_id"`
	PendingFields int    `json:"pending_fields"`
	PendingItems  int    `json:"pending_items"`
}

type logEntryResponse struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	ActorID    string          `json:"actor_id"`
	ContextID  string          `json:"context_id,omitempty"`
	EntityType string          `json:"entity_type,omitempty"`
	Action     string          `json:"action"`
	Summary    string          `json:"summary"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

type markerResponse struct {
	OperationID string `json:"operation_id"`
	Kind        string `json:"kind"`
	CreatedAt   string `json:"created_at"`
}

func contextKey(r *http.Request) domain.ContextKey {
	return domain.ContextKey{
		TenantID:  tenantIDFromContext(r.Context()),
		ContextID: chi.URLParam(r, "contextID"),
	}
}

func (h *Handler) openContext(w http.ResponseWriter, r *http.Request) {
	var req openContextRequest
	if !decodeBody(w, r, "open_context", &req) {
		return
	}
	actor := actorFromContext(r.Context())
	locale := req.Locale
	if locale == "" {
		locale = actor.Locale
	}
	key := domain.ContextKey{TenantID: tenantIDFromContext(r.Context()), ContextID: req.ContextID}
	err := h.activity.Open(r.Context(), domain.EditingContext{
		Key:        key,
		ActorID:    actor.ID,
		EntityType: req.EntityType,
		Locale:     locale,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.pending(key))
}

func (h *Handler) recordChanges(w http.ResponseWriter, r *http.Request) {
	key := contextKey(r)
	var req recordChangesRequest
	if !decodeBody(w, r, "record_changes", &req) {
		return
	}
	for _, c := range req.Changes {
		err := h.activity.RecordChange(r.Context(), key, usecase.ChangeInput{
			FieldKey: c.FieldKey,
			Label:    c.Label,
			OldValue: c.OldValue,
			NewValue: c.NewValue,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.pending(key))
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	key := contextKey(r)
	var req addItemsRequest
	if !decodeBody(w, r, "add_items", &req) {
		return
	}
	for _, item := range req.Items {
		if err := h.activity.AddItem(r.Context(), key, item); err != nil {
			handleDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.pending(key))
}

func (h *Handler) flushContext(w http.ResponseWriter, r *http.Request) {
	n, err := h.activity.Flush(r.Context(), contextKey(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"emitted": n})
}

func (h *Handler) closeContext(w http.ResponseWriter, r *http.Request) {
	key := contextKey(r)
	if !h.activity.IsOpen(key) {
		handleDomainError(w, domain.ErrContextNotOpen)
		return
	}
	n, err := h.activity.Close(r.Context(), key)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"emitted": n})
}

func (h *Handler) teardownContext(w http.ResponseWriter, r *http.Request) {
	key := contextKey(r)
	if err := key.Validate(); err != nil {
		handleDomainError(w, err)
		return
	}
	h.activity.Teardown(key)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *Handler) beginBulk(w http.ResponseWriter, r *http.Request) {
	var req beginBulkRequest
	if !decodeBody(w, r, "begin_bulk", &req) {
		return
	}
	if req.OperationID == "" {
		req.OperationID = uuid.NewString()
	}
	tenantID := tenantIDFromContext(r.Context())
	if err := h.registry.Begin(r.Context(), req.OperationID, tenantID, domain.OperationKind(req.Kind)); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"operation_id": req.OperationID})
}

func (h *Handler) endBulk(w http.ResponseWriter, r *http.Request) {
	var req endBulkRequest
	if !decodeBody(w, r, "end_bulk", &req) {
		return
	}
	h.registry.End(r.Context(), tenantIDFromContext(r.Context()), req.OperationID)
	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}

func (h *Handler) activeBulk(w http.ResponseWriter, r *http.Request) {
	markers, err := h.registry.Active(r.Context(), tenantIDFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	result := make([]markerResponse, 0, len(markers))
	for _, m := range markers {
		result = append(result, markerResponse{
			OperationID: m.OperationID,
			Kind:        string(m.Kind),
			CreatedAt:   m.CreatedAt.UTC().Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": len(result) > 0, "items": result})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	var afterID int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be integer")
			return
		}
		afterID = parsed
	}

	entries, err := h.queries.List(r.Context(), domain.ActivityFilter{
		TenantID:  tenantIDFromContext(r.Context()),
		ContextID: r.URL.Query().Get("context_id"),
		Action:    domain.ActionKind(r.URL.Query().Get("action")),
		AfterID:   afterID,
		Limit:     limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toLogEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) pending(key domain.ContextKey) pendingResponse {
	fields, items := h.activity.Pending(key)
	return pendingResponse{ContextID: key.ContextID, PendingFields: fields, PendingItems: items}
}

func toLogEntryResponse(e domain.StoredLogEntry) logEntryResponse {
	return logEntryResponse{
		Seq:        e.Seq,
		ID:         e.ID,
		TenantID:   e.TenantID,
		ActorID:    e.ActorID,
		ContextID:  e.ContextID,
		EntityType: e.EntityType,
		Action:     string(e.Action),
		Summary:    e.Summary,
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt.UTC().Format(timeFormat),
	}
}
