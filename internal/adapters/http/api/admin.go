package api

import (
	"context"
	"net/http"

	service "github.com/okian/schoolboard/internal/app"
	"github.com/okian/schoolboard/internal/domain/cache"
	"github.com/okian/schoolboard/internal/domain/record"
)

// AdminDependencies covers the maintenance endpoints.
type AdminDependencies interface {
	SearchIDMapping(ctx context.Context, query string) ([]record.Record, error)
	Invalidate(ctx context.Context, key string) int
	CacheEntries() []cache.EntryInfo
	TestConnections(ctx context.Context) []service.ConnectionResult
}

// AdminHandler handles mapping search, cache control and connection tests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleIDMapping handles GET /api/id-mapping?q=.
func (h *AdminHandler) HandleIDMapping(w http.ResponseWriter, r *http.Request) {
	const op = "api.id_mapping"
	if r.Method != http.MethodGet {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	rows, err := h.deps.SearchIDMapping(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

// HandleCache handles GET and DELETE /api/cache. DELETE without a key
// clears everything; a key ending in "*" clears a prefix.
func (h *AdminHandler) HandleCache(w http.ResponseWriter, r *http.Request) {
	const op = "api.cache"
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.CacheEntries())
	case http.MethodDelete:
		key := r.URL.Query().Get("key")
		n := h.deps.Invalidate(r.Context(), key)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key, "removed": n})
	default:
		fail(w, NewKind(op, ErrMethod))
	}
}

// HandleConnections handles GET /api/connections.
func (h *AdminHandler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	const op = "api.connections"
	if r.Method != http.MethodGet {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.TestConnections(r.Context()))
}
