package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
	"github.com/atvirokodosprendimai/activitylog/internal/core/usecase"
)

type componentRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Data     json.RawMessage `json:"data"`
}

type componentResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type bulkImportRequest struct {
	OperationID string                   `json:"operation_id"`
	Source      string                   `json:"source"`
	Items       []usecase.BulkImportItem `json:"items"`
}

type bulkDeleteRequest struct {
	OperationID string   `json:"operation_id"`
	IDs         []string `json:"ids"`
}

type bulkResponse struct {
	OperationID string `json:"operation_id"`
	Count       int    `json:"count"`
	Logged      bool   `json:"logged"`
	Error       string `json:"error,omitempty"`
}

func (h *Handler) createComponent(w http.ResponseWriter, r *http.Request) {
	var req componentRequest
	if !decodeBody(w, r, "component", &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	c, err := h.components.Create(r.Context(), domain.Component{
		TenantID: tenantIDFromContext(r.Context()),
		ID:       req.ID,
		Name:     req.Name,
		Category: req.Category,
		Data:     req.Data,
	}, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toComponentResponse(c))
}

func (h *Handler) updateComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req componentRequest
	if !decodeBody(w, r, "component", &req) {
		return
	}
	if req.ID != "" && req.ID != id {
		writeError(w, http.StatusBadRequest, "body id does not match path")
		return
	}
	c, err := h.components.Update(r.Context(), domain.Component{
		TenantID: tenantIDFromContext(r.Context()),
		ID:       id,
		Name:     req.Name,
		Category: req.Category,
		Data:     req.Data,
	}, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toComponentResponse(c))
}

func (h *Handler) getComponent(w http.ResponseWriter, r *http.Request) {
	c, err := h.components.Get(r.Context(), tenantIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toComponentResponse(c))
}

func (h *Handler) deleteComponent(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.components.Delete(r.Context(), tenantIDFromContext(r.Context()), chi.URLParam(r, "id"), actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) listComponents(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	items, err := h.components.List(r.Context(), domain.ComponentFilter{
		TenantID: tenantIDFromContext(r.Context()),
		Category: r.URL.Query().Get("category"),
		AfterID:  r.URL.Query().Get("after"),
		Limit:    limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	result := make([]componentResponse, 0, len(items))
	for _, c := range items {
		result = append(result, toComponentResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) bulkImport(w http.ResponseWriter, r *http.Request) {
	var req bulkImportRequest
	if !decodeBody(w, r, "bulk_import", &req) {
		return
	}
	res, err := h.components.BulkImport(r.Context(), usecase.BulkImportRequest{
		OperationID: req.OperationID,
		TenantID:    tenantIDFromContext(r.Context()),
		Source:      req.Source,
		Items:       req.Items,
	}, actorFromContext(r.Context()))
	writeBulkResult(w, res, err)
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !decodeBody(w, r, "bulk_delete", &req) {
		return
	}
	res, err := h.components.BulkDelete(r.Context(), usecase.BulkDeleteRequest{
		OperationID: req.OperationID,
		TenantID:    tenantIDFromContext(r.Context()),
		IDs:         req.IDs,
	}, actorFromContext(r.Context()))
	writeBulkResult(w, res, err)
}

// writeBulkResult reports partial progress: rows processed before a failing
// row stay committed and are counted in the summary entry.
func writeBulkResult(w http.ResponseWriter, res usecase.BulkResult, err error) {
	body := bulkResponse{OperationID: res.OperationID, Count: res.Count, Logged: res.Logged}
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}
	if res.OperationID == "" {
		handleDomainError(w, err)
		return
	}
	body.Error = err.Error()
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidComponent):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, body)
}

func toComponentResponse(c domain.Component) componentResponse {
	return componentResponse{
		ID:        c.ID,
		Name:      c.Name,
		Category:  c.Category,
		Data:      c.Data,
		CreatedAt: c.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: c.UpdatedAt.UTC().Format(timeFormat),
	}
}
