package handlers

import (
	"net/http"

	"github.com/openequity/Settlement-Backend/internal/service"
)

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health checks the health of the system and database connectivity
func (h *SystemHandler) Health(w http.ResponseWriter, _ *http.Request) {
	if err := h.systemService.CheckHealth(); err != nil {
		response := HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		}
		respondJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response := HealthResponse{
		Status:   "healthy",
		Database: "connected",
	}
	respondJSON(w, http.StatusOK, response)
}

// VersionResponse represents the version check response.
type VersionResponse struct {
	AppVersion    string `json:"appVersion"`
	SchemaVersion int64  `json:"schemaVersion"`
	Error         string `json:"error,omitempty"`
}

// Version handles GET requests to retrieve application and schema versions.
//
// Endpoint: GET /api/system/version
// Response: 200 OK with VersionResponse
// Error: 500 Internal Server Error if the schema version cannot be read
func (h *SystemHandler) Version(w http.ResponseWriter, _ *http.Request) {
	schemaVersion, err := h.systemService.SchemaVersion()
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, VersionResponse{
			AppVersion: service.AppVersion,
			Error:      err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, VersionResponse{
		AppVersion:    service.AppVersion,
		SchemaVersion: schemaVersion,
	})
}
