package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/schoolboard/internal/domain/join"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/record"
)

// JoinDependencies runs cross-domain joins.
type JoinDependencies interface {
	Join(ctx context.Context, from model.Domain, selected []record.Record, targets []model.Domain) (join.Result, error)
}

// JoinHandler handles join requests.
type JoinHandler struct {
	deps JoinDependencies
}

// NewJoinHandler creates a new join handler.
func NewJoinHandler(deps JoinDependencies) *JoinHandler {
	return &JoinHandler{deps: deps}
}

type joinRequest struct {
	Source   string          `json:"source"`
	Selected []record.Record `json:"selected"`
	Targets  []string        `json:"targets"`
}

type joinResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Result  *join.Result `json:"result,omitempty"`
}

// HandleJoin handles POST /api/join. Failures are reported as
// {success:false,error} so the dashboard can show them inline.
func (h *JoinHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join"
	if r.Method != http.MethodPost {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, joinResponse{Error: WrapKind(op, ErrBadRequest, err).Error()})
		return
	}
	from, err := model.ParseDomain(req.Source)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, joinResponse{Error: err.Error()})
		return
	}
	targets := make([]model.Domain, 0, len(req.Targets))
	for _, t := range req.Targets {
		d, err := model.ParseDomain(t)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, joinResponse{Error: err.Error()})
			return
		}
		targets = append(targets, d)
	}
	res, err := h.deps.Join(r.Context(), from, req.Selected, targets)
	if err != nil {
		status, _ := classify(err)
		writeJSON(w, status, joinResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Success: true, Result: &res})
}
