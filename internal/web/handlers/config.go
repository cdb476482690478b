package handlers

import (
	"net/http"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/quality"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	VisionBackend   string             `json:"vision_backend"`
	Collection      string             `json:"collection,omitempty"`
	Storage         string             `json:"storage"`
	Bucket          string             `json:"bucket,omitempty"`
	Quality         quality.Thresholds `json:"quality"`
	Similarity      float64            `json:"similarity_threshold"`
	LowAttendance   float64            `json:"low_attendance_threshold"`
	HistoryEnabled  bool               `json:"history_enabled"`
	AlertsAvailable bool               `json:"alerts_available"`
}

// Get returns the active configuration without secrets
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		VisionBackend:   h.config.Vision.Backend,
		Storage:         "s3",
		Bucket:          h.config.AWS.Bucket,
		Quality:         h.config.Thresholds.Quality,
		Similarity:      h.config.Thresholds.Similarity,
		LowAttendance:   h.config.Thresholds.LowAttendance,
		HistoryEnabled:  database.IsInitialized(),
		AlertsAvailable: h.config.Notify.TopicARN != "",
	}
	if h.config.Vision.Backend == config.BackendRekognition {
		response.Collection = h.config.Vision.Collection
	}
	if h.config.Storage.Dir != "" {
		response.Storage = "dir"
		response.Bucket = ""
	}

	respondJSON(w, http.StatusOK, response)
}
