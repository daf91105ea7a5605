package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/internal/sync"
	"github.com/wendleyw/boardsync/internal/ticket"
	"github.com/wendleyw/boardsync/pkg/types"
)

// ProjectHandler serves the ticketing API consumed by the backend's own
// clients, including the manual sync trigger.
type ProjectHandler struct {
	service  *ticket.Service
	engine   *sync.Engine
	mappings *store.TaskMappingRepository
	logger   *zap.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(service *ticket.Service, engine *sync.Engine, mappings *store.TaskMappingRepository, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		service:  service,
		engine:   engine,
		mappings: mappings,
		logger:   logger,
	}
}

// RegisterRoutes registers project routes.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.CreateProject)
	r.Delete("/{projectID}", h.DeleteProject)
	r.Get("/{projectID}/status", h.GetStatus)
	r.Get("/{projectID}/statistics", h.GetStatistics)
	r.Get("/{projectID}/communications", h.ListCommunications)
	r.Post("/{projectID}/comments", h.AddComment)
	r.Patch("/{projectID}/status", h.SyncStatus)
	r.Patch("/{projectID}/tasks/{taskID}/sync", h.SyncTask)
}

// CreateProjectRequest is the body for POST /projects.
type CreateProjectRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ServiceType string     `json:"service_type"`
	Priority    string     `json:"priority"`
	ClientName  string     `json:"client_name"`
	Deadline    *time.Time `json:"deadline"`
}

// CreateProject handles POST /projects.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	t, err := h.service.Create(r.Context(), ticket.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		ServiceType: req.ServiceType,
		Priority:    req.Priority,
		ClientName:  req.ClientName,
		Deadline:    req.Deadline,
	})
	if err != nil {
		h.logger.Error("failed to create project", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "ticket": t})
}

// DeleteProject handles DELETE /projects/{projectID}.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("failed to delete project", zap.String("project_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetStatus handles GET /projects/{projectID}/status.
func (h *ProjectHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	status, err := h.service.GetIntegrationStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project status", zap.String("project_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get project status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
}

// GetStatistics handles GET /projects/{projectID}/statistics.
func (h *ProjectHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if _, err := h.service.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load project")
		return
	}

	stats, err := h.engine.GetStatistics(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to aggregate statistics", zap.String("project_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to aggregate statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "statistics": stats})
}

// ListCommunications handles GET /projects/{projectID}/communications.
func (h *ProjectHandler) ListCommunications(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	limit := queryInt(r, "limit", 50)

	logs, err := h.service.Communications(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list communications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "communications": logs})
}

// AddCommentRequest is the body for POST /projects/{projectID}/comments.
type AddCommentRequest struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}

// AddComment handles POST /projects/{projectID}/comments.
func (h *ProjectHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Author == "" {
		req.Author = "Client"
	}

	result := h.service.AddClientComment(r.Context(), id, req.Author, req.Message)
	if !result.Success {
		if result.NotFound {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// SyncStatusRequest is the body for PATCH /projects/{projectID}/status.
type SyncStatusRequest struct {
	Status string `json:"status"`
	Source string `json:"source"`
}

// SyncStatus handles PATCH /projects/{projectID}/status.
func (h *ProjectHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")

	var req SyncStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	source := types.Platform(req.Source)
	if req.Source == "" {
		source = types.PlatformSystem
	}
	if !source.Valid() {
		writeError(w, http.StatusBadRequest, "unknown source platform")
		return
	}

	result := h.engine.SyncTicketStatus(r.Context(), id, req.Status, source)
	if !result.Success {
		if result.NotFound {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SyncTaskRequest is the body for PATCH /projects/{projectID}/tasks/{taskID}/sync.
type SyncTaskRequest struct {
	Completed *bool  `json:"completed"`
	Source    string `json:"source"`
}

// SyncTask handles the manual sync trigger.
func (h *ProjectHandler) SyncTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req SyncTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}
	source := types.Platform(req.Source)
	if req.Source == "" {
		source = types.PlatformSystem
	}
	if !source.Valid() {
		writeError(w, http.StatusBadRequest, "unknown source platform")
		return
	}

	mapping, err := h.mappings.FindByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	result := h.engine.SyncTaskCompletion(r.Context(), sync.TaskSync{
		MappingID: mapping.ID,
		Completed: *req.Completed,
		TaskName:  mapping.TaskName,
		Source:    source,
	})
	if !result.Success {
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
