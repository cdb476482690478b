package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/notify"
	"github.com/kozaktomas/roll-call/internal/report"
)

const errSessionsDisabled = "session history is not configured"

// AbsentNotifier sends the absent list of a session to guardians.
type AbsentNotifier interface {
	PublishAbsent(ctx context.Context, absent []identity.StudentIdentity) (string, error)
}

// SessionsHandler serves stored attendance sessions and absence alerts.
type SessionsHandler struct {
	sessions database.SessionReader
	notifier AbsentNotifier
}

// NewSessionsHandler creates a new sessions handler. Either dependency may be nil.
func NewSessionsHandler(sessions database.SessionReader, notifier AbsentNotifier) *SessionsHandler {
	return &SessionsHandler{
		sessions: sessions,
		notifier: notifier,
	}
}

type listSessionsQuery struct {
	Batch string `form:"batch" validate:"max=64"`
	Limit int    `form:"limit" validate:"gte=1,lte=500"`
}

// AlertResponse describes a published absence alert.
type AlertResponse struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id,omitempty"`
	Absent    int    `json:"absent"`
	Sent      bool   `json:"sent"`
}

// List returns recent sessions, newest first.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, errSessionsDisabled)
		return
	}

	q := listSessionsQuery{
		Batch: strings.TrimSpace(r.URL.Query().Get("batch")),
		Limit: constants.DefaultSessionListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		q.Limit = limit
	}
	if !validateRequest(w, q) {
		return
	}

	sessions, err := h.sessions.ListSessions(r.Context(), q.Batch, q.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []database.AttendanceSession{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

// loadSession resolves the {id} URL parameter. It writes the error response
// itself and returns nil when the session cannot be served.
func (h *SessionsHandler) loadSession(w http.ResponseWriter, r *http.Request) *database.AttendanceSession {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, errSessionsDisabled)
		return nil
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return nil
	}

	session, err := h.sessions.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load session: %v", err))
		return nil
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return session
}

// Get returns one session with its records and quality reports.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := h.loadSession(w, r)
	if session == nil {
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Alert publishes the absent students of a session.
func (h *SessionsHandler) Alert(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		respondError(w, http.StatusServiceUnavailable, notify.ErrNoTopic.Error())
		return
	}
	session := h.loadSession(w, r)
	if session == nil {
		return
	}

	var absent []identity.StudentIdentity
	for _, rec := range session.Records {
		if rec.Status == string(report.StatusAbsent) {
			absent = append(absent, identity.StudentIdentity{StudentID: rec.StudentID, DisplayName: rec.StudentName})
		}
	}

	resp := AlertResponse{SessionID: session.ID.String(), Absent: len(absent)}
	if len(absent) == 0 {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	messageID, err := h.notifier.PublishAbsent(r.Context(), absent)
	if err != nil {
		if errors.Is(err, notify.ErrNoTopic) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logger.Error("absence alert failed",
			logger.LoggerOptions{Key: "session_id", Data: resp.SessionID},
			logger.LoggerOptions{Key: "error", Data: err})
		respondError(w, http.StatusBadGateway, fmt.Sprintf("failed to send alert: %v", err))
		return
	}

	resp.MessageID = messageID
	resp.Sent = true
	respondJSON(w, http.StatusOK, resp)
}
