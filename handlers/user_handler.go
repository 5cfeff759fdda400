package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"focusQuestAPI/internal/user"
	"focusQuestAPI/middleware"
)

type UserHandler struct {
	userService        UserManager
	achievementService AchievementReader
	cookies            CookieOptions
}

func NewUserHandler(userService UserManager, achievementService AchievementReader, cookies CookieOptions) *UserHandler {
	return &UserHandler{
		userService:        userService,
		achievementService: achievementService,
		cookies:            cookies,
	}
}

// GET /api/v1/user
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err, "load profile")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// PUT /api/v1/user
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username != "" {
		if err := user.ValidateUsername(req.Username); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	u, err := h.userService.UpdateProfile(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, err, "update profile")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// PUT /api/v1/user/preferences
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(req.Preferences, &obj); err != nil || obj == nil {
		respondWithError(w, http.StatusBadRequest, "preferences must be a JSON object")
		return
	}

	u, err := h.userService.UpdatePreferences(ctx, userID, req.Preferences)
	if err != nil {
		respondWithServiceError(w, err, "update preferences")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// DELETE /api/v1/user
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.userService.DeleteUser(ctx, userID); err != nil {
		respondWithServiceError(w, err, "delete account")
		return
	}

	clearAuthCookie(w, h.cookies)
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/v1/achievements
func (h *UserHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	achievements, err := h.achievementService.List(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err, "load achievements")
		return
	}

	respondWithJSON(w, http.StatusOK, achievements)
}

// GET /api/v1/skills
func (h *UserHandler) GetSkills(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	trees, err := h.achievementService.Skills(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err, "load skills")
		return
	}

	respondWithJSON(w, http.StatusOK, trees)
}
