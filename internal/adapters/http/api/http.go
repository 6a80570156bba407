// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/schoolboard/internal/app"
	"github.com/okian/schoolboard/internal/domain/auth"
	"github.com/okian/schoolboard/internal/domain/cache"
	"github.com/okian/schoolboard/internal/domain/join"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	GetDataPackage(ctx context.Context, periodToken string, d model.DashboardType) (*model.Package, error)
	GetAvailableYears(ctx context.Context) (model.AvailableYears, error)
	Join(ctx context.Context, from model.Domain, selected []record.Record, targets []model.Domain) (join.Result, error)
	SearchIDMapping(ctx context.Context, query string) ([]record.Record, error)
	Invalidate(ctx context.Context, key string) int
	CacheEntries() []cache.EntryInfo
	TestConnections(ctx context.Context) []service.ConnectionResult
	Sessions() *auth.Sessions
}

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionHandler   *SessionHandler
	dashboardHandler *DashboardHandler
	joinHandler      *JoinHandler
	adminHandler     *AdminHandler
	sessions         *auth.Sessions
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		sessionHandler:   NewSessionHandler(deps.Sessions()),
		dashboardHandler: NewDashboardHandler(deps),
		joinHandler:      NewJoinHandler(deps),
		adminHandler:     NewAdminHandler(deps),
		sessions:         deps.Sessions(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	guard := func(h http.HandlerFunc) http.HandlerFunc { return AuthMiddleware(s.sessions, h) }

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/api/session", MetricsMiddleware(s.sessionHandler.HandleSession, "session"))
	mux.HandleFunc("/api/years", MetricsMiddleware(guard(s.dashboardHandler.HandleYears), "years"))
	mux.HandleFunc("/api/packages", MetricsMiddleware(guard(s.dashboardHandler.HandlePackage), "packages"))
	mux.HandleFunc("/api/join", MetricsMiddleware(guard(s.joinHandler.HandleJoin), "join"))
	mux.HandleFunc("/api/id-mapping", MetricsMiddleware(guard(s.adminHandler.HandleIDMapping), "id_mapping"))
	mux.HandleFunc("/api/cache", MetricsMiddleware(guard(s.adminHandler.HandleCache), "cache"))
	mux.HandleFunc("/api/connections", MetricsMiddleware(guard(s.adminHandler.HandleConnections), "connections"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps domain sentinels to a status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrUnknownDashboard),
		errors.Is(err, model.ErrUnknownDomain),
		errors.Is(err, period.ErrInvalidToken),
		errors.Is(err, join.ErrNoSelection):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, auth.ErrInvalidPassKey):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrMethod):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
