package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/tg-booking-miniapp/internal/host"
	"github.com/wolfman30/tg-booking-miniapp/internal/session"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// SessionStore is the part of the session manager the REST surface needs.
type SessionStore interface {
	Create(platform host.Platform) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Remove(id string) error
}

// SessionsHandler drives booking sessions over plain HTTP. Sessions created
// here have no host, so the view carries in-page controls.
type SessionsHandler struct {
	sessions SessionStore
	logger   *logging.Logger
}

func NewSessionsHandler(sessions SessionStore, logger *logging.Logger) *SessionsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionsHandler{sessions: sessions, logger: logger}
}

// Routes mounts the session endpoints.
func (h *SessionsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{sessionID}", h.Get)
	r.Post("/{sessionID}/actions", h.Dispatch)
	r.Delete("/{sessionID}", h.Delete)
	return r
}

// Create handles POST /api/sessions
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(nil)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		jsonError(w, "could not start a booking session", http.StatusInternalServerError)
		return
	}
	view, err := s.View(r.Context())
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Get handles GET /api/sessions/{sessionID}
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	view, err := s.View(r.Context())
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Dispatch handles POST /api/sessions/{sessionID}/actions. Guard rejections
// come back as 200 with the notice set in the view.
func (h *SessionsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var action session.Action
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&action); err != nil {
		jsonError(w, "invalid action body", http.StatusBadRequest)
		return
	}
	if action.Type == "" {
		jsonError(w, "action type is required", http.StatusBadRequest)
		return
	}
	view, err := s.Dispatch(r.Context(), action)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /api/sessions/{sessionID}
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Remove(chi.URLParam(r, "sessionID")); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.sessionError(w, err)
		return nil, false
	}
	return s, true
}

func (h *SessionsHandler) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrClosed):
		jsonError(w, "session not found", http.StatusNotFound)
	default:
		h.logger.Error("session request failed", "error", err)
		jsonError(w, "session unavailable", http.StatusServiceUnavailable)
	}
}
