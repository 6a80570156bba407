package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/schoolboard/internal/domain/auth"
)

// SessionHandler logs clients in and out with the configured passkey.
type SessionHandler struct {
	sessions *auth.Sessions
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *auth.Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loginRequest struct {
	PassKey string `json:"passKey"`
}

type sessionResponse struct {
	Success   bool       `json:"success"`
	Required  bool       `json:"required"`
	SessionID string     `json:"sessionId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HandleSession handles POST and DELETE /api/session.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session"
	switch r.Method {
	case http.MethodPost:
	case http.MethodDelete:
		if id := sessionID(r); id != "" {
			h.sessions.Logout(id)
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Required: h.sessions.Enabled()})
		return
	default:
		fail(w, NewKind(op, ErrMethod))
		return
	}

	if !h.sessions.Enabled() {
		writeJSON(w, http.StatusOK, sessionResponse{Success: true})
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := h.sessions.Login(r.Context(), req.PassKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassKey) {
			writeError(w, http.StatusUnauthorized, "unauthorized", Wrap(op, err))
			return
		}
		fail(w, Wrap(op, err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		Success:   true,
		Required:  true,
		SessionID: sess.ID,
		ExpiresAt: &sess.ExpiresAt,
	})
}
