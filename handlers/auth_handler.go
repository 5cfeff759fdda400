package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"focusQuestAPI/internal/auth"
	"focusQuestAPI/internal/user"
	"focusQuestAPI/middleware"
)

type AuthHandler struct {
	userService UserManager
	tokens      *auth.TokenManager
	cookies     CookieOptions
}

func NewAuthHandler(userService UserManager, tokens *auth.TokenManager, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
		cookies:     cookies,
	}
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.userService.Register(ctx, &req)
	if err != nil {
		respondWithServiceError(w, err, "register")
		return
	}

	h.issue(w, http.StatusCreated, u)
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.userService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, err, "log in")
		return
	}

	h.issue(w, http.StatusOK, u)
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w, h.cookies)
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err, "load user")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) issue(w http.ResponseWriter, code int, u *user.User) {
	token, err := h.tokens.Issue(u.ID, u.Username, u.Email)
	if err != nil {
		zap.S().Errorf("Failed to issue token for %s: %v", u.ID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	setAuthCookie(w, h.cookies, token)
	respondWithJSON(w, code, user.AuthResponse{Token: token, User: u})
}
