package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/registry"
)

// StudentsHandler handles student enrollment endpoints.
type StudentsHandler struct {
	registry *registry.Service
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(reg *registry.Service) *StudentsHandler {
	return &StudentsHandler{
		registry: reg,
	}
}

type registerForm struct {
	Batch       string `form:"batch" validate:"required,max=64"`
	StudentID   string `form:"er_number" validate:"required,max=32"`
	Name        string `form:"name" validate:"required,max=128"`
	ParentPhone string `form:"parent_phone" validate:"omitempty,max=20"`
}

// RosterResponse lists the students enrolled in a batch.
type RosterResponse struct {
	Batch    string                   `json:"batch"`
	Students []attendance.RosterEntry `json:"students"`
}

// Register enrolls a student with one or more reference photos.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return
	}

	form := registerForm{
		Batch:       strings.TrimSpace(r.FormValue("batch")),
		StudentID:   strings.TrimSpace(r.FormValue("er_number")),
		Name:        strings.TrimSpace(r.FormValue("name")),
		ParentPhone: strings.TrimSpace(r.FormValue("parent_phone")),
	}
	if !validateRequest(w, form) {
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}
	files, err := readUploadedFiles(headers)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	uploads := make([]registry.Upload, len(files))
	for i, f := range files {
		uploads[i] = registry.Upload{Filename: f.Filename, Data: f.Data}
	}

	result, err := h.registry.Register(r.Context(), registry.RegisterRequest{
		Batch:       form.Batch,
		StudentID:   form.StudentID,
		Name:        form.Name,
		ParentPhone: form.ParentPhone,
		Images:      uploads,
	})
	switch {
	case errors.Is(err, registry.ErrMissingField), errors.Is(err, registry.ErrNoImages):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, registry.ErrNoValidImages):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"rejected": result.Rejected,
		})
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to register student: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// List returns the roster of a batch built from its reference photos.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	batch := strings.TrimSpace(r.URL.Query().Get("batch"))
	if batch == "" {
		respondError(w, http.StatusBadRequest, "batch is required")
		return
	}

	students, err := h.registry.Students(r.Context(), batch)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list students: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, RosterResponse{Batch: batch, Students: students})
}
