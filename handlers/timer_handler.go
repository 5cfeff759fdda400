package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"focusQuestAPI/internal/timer"
	"focusQuestAPI/middleware"
	"focusQuestAPI/services"
)

type TimerHandler struct {
	timerService TimerManager
	hub          *services.TimerHub
	upgrader     websocket.Upgrader
}

// NewTimerHandler wires the timer routes. allowedOrigins gates websocket
// upgrades; an empty list accepts any origin.
func NewTimerHandler(timerService TimerManager, hub *services.TimerHub, allowedOrigins []string) *TimerHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &TimerHandler{
		timerService: timerService,
		hub:          hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || origins[origin] || origins["*"]
			},
		},
	}
}

// POST /api/v1/timer/start
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req timer.StartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.timerService.Start(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, err, "start timer")
		return
	}

	respondWithJSON(w, http.StatusCreated, session)
}

// POST /api/v1/timer/pause
func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause timer", h.timerService.Pause)
}

// POST /api/v1/timer/resume
func (h *TimerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume timer", h.timerService.Resume)
}

func (h *TimerHandler) transition(w http.ResponseWriter, r *http.Request, op string, apply func(context.Context, string) (*timer.Session, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	session, err := apply(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err, op)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// POST /api/v1/timer/stop
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.timerService.Stop(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err, "stop timer")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GET /api/v1/timer/active
func (h *TimerHandler) Active(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	session, err := h.timerService.Active(ctx, userID)
	if err != nil && !errors.Is(err, timer.ErrNoActiveSession) {
		respondWithServiceError(w, err, "load active timer")
		return
	}

	response := map[string]interface{}{"session": session}
	if session != nil {
		response["elapsedSeconds"] = int64(session.Elapsed(time.Now()) / time.Second)
	}
	respondWithJSON(w, http.StatusOK, response)
}

// GET /api/v1/timer/history?limit=&offset=
func (h *TimerHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	sessions, err := h.timerService.History(ctx, userID, queryInt(r, "limit", timer.DefaultHistoryLimit), queryInt(r, "offset", 0))
	if err != nil {
		respondWithServiceError(w, err, "load timer history")
		return
	}

	respondWithJSON(w, http.StatusOK, sessions)
}

// POST /api/v1/timer/sync
func (h *TimerHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req timer.SyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Sessions) == 0 {
		respondWithError(w, http.StatusBadRequest, "sessions are required")
		return
	}
	if len(req.Sessions) > timer.MaxSyncBatch {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("at most %d sessions can be synced at once", timer.MaxSyncBatch))
		return
	}

	result, err := h.timerService.Sync(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, err, "sync sessions")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GET /api/v1/timer/ws
func (h *TimerHandler) Socket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnf("Could not upgrade timer socket: %v", err)
		return
	}

	client := services.NewHubClient(h.hub, userID, conn)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
