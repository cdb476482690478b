package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/roll-call/internal/dashboard"
)

// DashboardHandler serves aggregated attendance statistics.
type DashboardHandler struct {
	dashboard     *dashboard.Service
	lowAttendance float64
}

// NewDashboardHandler creates a new dashboard handler. lowAttendance is the
// default eligibility threshold in percent.
func NewDashboardHandler(svc *dashboard.Service, lowAttendance float64) *DashboardHandler {
	return &DashboardHandler{
		dashboard:     svc,
		lowAttendance: lowAttendance,
	}
}

type eligibilityQuery struct {
	Threshold float64 `form:"threshold" validate:"gte=0,lte=100"`
}

// Overview returns per subject and batch averages with a monthly trend.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.dashboard.Overview(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build overview: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// Students returns per student attendance summaries.
func (h *DashboardHandler) Students(w http.ResponseWriter, r *http.Request) {
	students, err := h.dashboard.Students(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build student summaries: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, students)
}

// Student returns the attendance history of one student, newest first.
func (h *DashboardHandler) Student(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "student id is required")
		return
	}

	history, err := h.dashboard.History(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"er_number": id,
		"history":   history,
	})
}

// Eligibility lists students whose attendance is below the threshold.
func (h *DashboardHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	threshold, err := parseThreshold(r.URL.Query().Get("threshold"), h.lowAttendance)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validateRequest(w, eligibilityQuery{Threshold: threshold}) {
		return
	}

	eligibility, err := h.dashboard.Eligibility(r.Context(), threshold)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to check eligibility: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, eligibility)
}
