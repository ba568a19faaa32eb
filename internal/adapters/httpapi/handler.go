package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
	"github.com/atvirokodosprendimai/activitylog/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	tenantIDCtxKey  ctxKey = "tenant_id"
	actorCtxKey     ctxKey = "actor"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	activity   *usecase.ActivityService
	registry   *usecase.BulkRegistry
	queries    *usecase.ActivityQueryService
	components *usecase.ComponentService
	logger     *slog.Logger
}

func NewHandler(
	activity *usecase.ActivityService,
	registry *usecase.BulkRegistry,
	queries *usecase.ActivityQueryService,
	components *usecase.ComponentService,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{activity: activity, registry: registry, queries: queries, components: components, logger: logger}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireTenant)

		pr.Post("/v1/activity/contexts", h.openContext)
		pr.Post("/v1/activity/contexts/{contextID}/changes", h.recordChanges)
		pr.Post("/v1/activity/contexts/{contextID}/items", h.addItems)
		pr.Post("/v1/activity/contexts/{contextID}/close", h.closeContext)
		pr.Delete("/v1/activity/contexts/{contextID}", h.teardownContext)
		pr.Post("/v1/activity/flush/{contextID}", h.flushContext)

		pr.Post("/v1/activity/begin-bulk", h.beginBulk)
		pr.Post("/v1/activity/end-bulk", h.endBulk)
		pr.Get("/v1/activity/bulk/active", h.activeBulk)
		pr.Get("/v1/activity/logs", h.listLogs)

		pr.Get("/v1/components", h.listComponents)
		pr.Post("/v1/components", h.createComponent)
		pr.Get("/v1/components/{id}", h.getComponent)
		pr.Put("/v1/components/{id}", h.updateComponent)
		pr.Delete("/v1/components/{id}", h.deleteComponent)
		pr.Post("/v1/components:bulk-import", h.bulkImport)
		pr.Post("/v1/components:bulk-delete", h.bulkDelete)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

// requireTenant takes tenant and actor from the headers set by the upstream
// gateway. Authentication happens before requests reach this service.
func (h *Handler) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		if err := domain.ValidateKey(tenantID); err != nil {
			writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
			return
		}
		actor := usecase.Actor{
			ID:     strings.TrimSpace(r.Header.Get("X-Actor-ID")),
			Locale: requestLocale(r),
		}
		if actor.ID == "" {
			actor.ID = "api"
		}
		ctx := context.WithValue(r.Context(), tenantIDCtxKey, tenantID)
		ctx = context.WithValue(ctx, actorCtxKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLocale prefers an explicit X-Locale header and falls back to the
// highest weighted Accept-Language tag. Empty means the catalog default.
func requestLocale(r *http.Request) string {
	if loc := strings.TrimSpace(r.Header.Get("X-Locale")); loc != "" {
		return loc
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func tenantIDFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantIDCtxKey).(string)
	return tenant
}

func actorFromContext(ctx context.Context) usecase.Actor {
	actor, _ := ctx.Value(actorCtxKey).(usecase.Actor)
	if actor.ID == "" {
		actor.ID = "api"
	}
	return actor
}

// decodeBody reads the request body, validates it against the named schema
// and strictly decodes it into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := validateBody(schema, raw); err != nil {
		handleDomainError(w, err)
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("encode json response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var violation *domain.ErrSchemaViolation
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "request body does not match schema", "details": violation.Errors})
	case errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidOperationKind),
		errors.Is(err, domain.ErrInvalidComponent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrContextNotOpen):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRegistryWrite):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("unhandled request error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
