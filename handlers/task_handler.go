package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"focusQuestAPI/internal/task"
	"focusQuestAPI/middleware"
)

type TaskHandler struct {
	taskService TaskManager
}

func NewTaskHandler(taskService TaskManager) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// GET /api/v1/tasks?projectId=&completed=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var filter task.ListFilter
	if projectID := r.URL.Query().Get("projectId"); projectID != "" {
		filter.ProjectID = &projectID
	}
	if raw := r.URL.Query().Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		filter.Completed = &completed
	}

	tasks, err := h.taskService.List(ctx, userID, filter)
	if err != nil {
		respondWithServiceError(w, err, "list tasks")
		return
	}

	respondWithJSON(w, http.StatusOK, tasks)
}

// POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req task.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.taskService.Create(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, err, "create task")
		return
	}

	respondWithJSON(w, http.StatusCreated, t)
}

// GET /api/v1/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	t, err := h.taskService.Get(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, err, "load task")
		return
	}

	respondWithJSON(w, http.StatusOK, t)
}

// PUT /api/v1/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req task.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.taskService.Update(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, err, "update task")
		return
	}

	respondWithJSON(w, http.StatusOK, t)
}

// DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.taskService.Delete(ctx, userID, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, err, "delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/tasks/{id}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.taskService.Complete(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, err, "complete task")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
