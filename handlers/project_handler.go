package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"focusQuestAPI/internal/project"
	"focusQuestAPI/middleware"
)

type ProjectHandler struct {
	projectService ProjectManager
}

func NewProjectHandler(projectService ProjectManager) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// GET /api/v1/projects?archived=true
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	projects, err := h.projectService.List(ctx, userID, r.URL.Query().Get("archived") == "true")
	if err != nil {
		respondWithServiceError(w, err, "list projects")
		return
	}

	respondWithJSON(w, http.StatusOK, projects)
}

// POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req project.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.projectService.Create(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, err, "create project")
		return
	}

	respondWithJSON(w, http.StatusCreated, p)
}

// GET /api/v1/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.projectService.Get(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, err, "load project")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// PUT /api/v1/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req project.UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.projectService.Update(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, err, "update project")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// DELETE /api/v1/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.projectService.Delete(ctx, userID, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, err, "delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
