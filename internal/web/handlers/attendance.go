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
	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/quality"
)

// AttendanceHandler handles attendance marking and photo quality checks.
type AttendanceHandler struct {
	service    *attendance.Service
	jobManager *JobManager
	threshold  float64
}

// NewAttendanceHandler creates a new attendance handler. threshold is the
// similarity used when a request does not specify one.
func NewAttendanceHandler(svc *attendance.Service, jm *JobManager, threshold float64) *AttendanceHandler {
	if threshold <= 0 {
		threshold = attendance.DefaultThreshold
	}
	return &AttendanceHandler{
		service:    svc,
		jobManager: jm,
		threshold:  threshold,
	}
}

type markForm struct {
	Batch     string  `form:"batch" validate:"required"`
	Class     string  `form:"class" validate:"required"`
	Subject   string  `form:"subject" validate:"required"`
	Threshold float64 `form:"threshold" validate:"gt=0,lte=100"`
}

// QualityResponse is the result of a quality-only check.
type QualityResponse struct {
	Reports []quality.Report `json:"reports"`
	Usable  int              `json:"usable"`
}

// parseThreshold reads an optional numeric form value.
func parseThreshold(raw string, fallback float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("threshold must be a number")
	}
	return v, nil
}

// parseMarkRequest reads and validates a marking form. It writes the error
// response itself and returns false on failure.
func (h *AttendanceHandler) parseMarkRequest(w http.ResponseWriter, r *http.Request) (attendance.MarkRequest, bool) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return attendance.MarkRequest{}, false
	}

	threshold, err := parseThreshold(r.FormValue("threshold"), h.threshold)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return attendance.MarkRequest{}, false
	}
	form := markForm{
		Batch:     strings.TrimSpace(r.FormValue("batch")),
		Class:     strings.TrimSpace(r.FormValue("class")),
		Subject:   strings.TrimSpace(r.FormValue("subject")),
		Threshold: threshold,
	}
	if !validateRequest(w, form) {
		return attendance.MarkRequest{}, false
	}

	photos := parsePhotos(w, r)
	if photos == nil {
		return attendance.MarkRequest{}, false
	}

	return attendance.MarkRequest{
		Batch:     form.Batch,
		Class:     form.Class,
		Subject:   form.Subject,
		Photos:    photos,
		Threshold: form.Threshold,
	}, true
}

// Mark resolves attendance from uploaded classroom photos.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseMarkRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Mark(r.Context(), req)
	if err != nil {
		if errors.Is(err, attendance.ErrNoPhotos) || errors.Is(err, attendance.ErrMissingField) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("attendance marking failed",
			logger.LoggerOptions{Key: "batch", Data: sanitizeForLog(req.Batch)},
			logger.LoggerOptions{Key: "error", Data: err})
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to mark attendance: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Quality assesses uploaded photos without matching students.
func (h *AttendanceHandler) Quality(w http.ResponseWriter, r *http.Request) {
	photos := parsePhotos(w, r)
	if photos == nil {
		return
	}

	reports, err := h.service.CheckQuality(r.Context(), photos)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to check quality: %v", err))
		return
	}

	usable := 0
	for i := range reports {
		if reports[i].Usable() {
			usable++
		}
	}
	respondJSON(w, http.StatusOK, QualityResponse{Reports: reports, Usable: usable})
}

// StartJob starts an attendance run in the background and returns its job.
// Progress is streamed by Events.
func (h *AttendanceHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseMarkRequest(w, r)
	if !ok {
		return
	}

	job := h.jobManager.CreateJob(uuid.New().String(), req.Batch, req.Class, req.Subject, len(req.Photos))
	go h.runMarkJob(job, req)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// JobStatus returns the state of an attendance job.
func (h *AttendanceHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams attendance job events via SSE.
func (h *AttendanceHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*MarkJob).Snapshot()
		},
	)
}

// CancelJob cancels a running attendance job.
func (h *AttendanceHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runMarkJob runs the attendance job in the background.
func (h *AttendanceHandler) runMarkJob(job *MarkJob, req attendance.MarkRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		job.mu.Unlock()
		job.finish(nil, context.Canceled)
		return
	}
	job.cancel = cancel
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Attendance job started"})

	req.Progress = job.update
	result, err := h.service.Mark(ctx, req)
	if err != nil {
		logger.Error("attendance job failed",
			logger.LoggerOptions{Key: "job_id", Data: job.ID},
			logger.LoggerOptions{Key: "error", Data: err})
	}
	job.finish(result, err)
}
