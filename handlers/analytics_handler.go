package handlers

import (
	"context"
	"net/http"
	"time"

	"focusQuestAPI/internal/stats"
	"focusQuestAPI/middleware"
)

type AnalyticsHandler struct {
	analyticsService AnalyticsReader
}

func NewAnalyticsHandler(analyticsService AnalyticsReader) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
	}
}

// GET /api/v1/analytics/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	summary, err := h.analyticsService.Summary(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err, "load summary")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// GET /api/v1/analytics/daily?days=N
func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	days := stats.ClampDays(queryInt(r, "days", stats.DefaultDays))
	daily, err := h.analyticsService.Daily(ctx, userID, days)
	if err != nil {
		respondWithServiceError(w, err, "load daily stats")
		return
	}

	respondWithJSON(w, http.StatusOK, daily)
}

// GET /api/v1/analytics/projects?days=N
func (h *AnalyticsHandler) Projects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	breakdown, err := h.analyticsService.Projects(ctx, userID, stats.ClampDays(queryInt(r, "days", 30)))
	if err != nil {
		respondWithServiceError(w, err, "load project stats")
		return
	}

	respondWithJSON(w, http.StatusOK, breakdown)
}
