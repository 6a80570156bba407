package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
)

// DashboardDependencies serves packages and period lists.
type DashboardDependencies interface {
	GetDataPackage(ctx context.Context, periodToken string, d model.DashboardType) (*model.Package, error)
	GetAvailableYears(ctx context.Context) (model.AvailableYears, error)
}

// DashboardHandler handles dashboard data requests.
type DashboardHandler struct {
	deps DashboardDependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleYears handles GET /api/years.
func (h *DashboardHandler) HandleYears(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_years"
	if r.Method != http.MethodGet {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	years, err := h.deps.GetAvailableYears(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, years)
}

// HandlePackage handles GET /api/packages?period=&type=. A missing period
// means the latest one.
func (h *DashboardHandler) HandlePackage(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_package"
	if r.Method != http.MethodGet {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	q := r.URL.Query()
	kind := strings.TrimSpace(q.Get("type"))
	if kind == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	d, err := model.ParseDashboardType(kind)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	token := strings.TrimSpace(q.Get("period"))
	if token == "" {
		token = period.Latest
	}
	pkg, err := h.deps.GetDataPackage(r.Context(), token, d)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}
