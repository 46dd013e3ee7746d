package server

import (
	"net/http"
	"time"

	"github.com/tasksage/tasksage/internal/logging"
	"github.com/tasksage/tasksage/internal/store"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	DueDate     *string `json:"due_date"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	tasks, err := h.tasks.ListByOwner(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list tasks", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"tasks":   tasks,
	})
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Title == "" {
		jsonError(w, http.StatusBadRequest, "Title is required")
		return
	}

	task := &store.Task{
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "due_date must be RFC 3339")
			return
		}
		task.DueDate = &due
	}

	if err := h.tasks.Create(r.Context(), task); err != nil {
		h.logger.Error("failed to create task", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	// Suggestions are best-effort; an empty slice means the model had
	// nothing usable.
	suggestions := []string{}
	if h.suggester != nil {
		suggestions = h.suggester.Suggest(r.Context(), task.Title, task.Description)
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"success":            true,
		"message":            "Task created successfully",
		"task":               task,
		"suggested_subtasks": suggestions,
	})
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	taskID := r.PathValue("id")

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	patch := store.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		if !store.ValidStatus(*req.Status) {
			jsonError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		patch.Status = req.Status
	}
	if req.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "due_date must be RFC 3339")
			return
		}
		patch.DueDate = &due
	}

	task, err := h.tasks.Update(r.Context(), userID, taskID, patch)
	if err != nil {
		h.logger.Error("failed to update task", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if task == nil {
		jsonError(w, http.StatusNotFound, "Task not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task updated successfully",
		"task":    task,
	})
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	taskID := r.PathValue("id")

	deleted, err := h.tasks.Delete(r.Context(), userID, taskID)
	if err != nil {
		h.logger.Error("failed to delete task", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "Task not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task deleted successfully",
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Message == "" {
		jsonError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if h.chatter == nil {
		jsonError(w, http.StatusServiceUnavailable, "Assistant is not configured")
		return
	}

	answer, err := h.chatter.Chat(r.Context(), userID, req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", logging.UserHash(userID), logging.Err(err))
		jsonError(w, http.StatusBadGateway, "Assistant request failed")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "AI response generated",
		"response":  answer,
		"timestamp": nowUTC().Format(time.RFC3339),
	})
}
