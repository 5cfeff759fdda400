package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"focusQuestAPI/internal/leaderboard"
	"focusQuestAPI/internal/user"
	"focusQuestAPI/middleware"
)

type LeaderboardHandler struct {
	leaderboardService LeaderboardReader
}

func NewLeaderboardHandler(leaderboardService LeaderboardReader) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

// GET /api/v1/leaderboard?period=weekly|monthly|all-time&limit=
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	period, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := h.leaderboardService.Get(ctx, period, queryInt(r, "limit", leaderboard.DefaultLimit), userID)
	if err != nil {
		respondWithServiceError(w, err, "load leaderboard")
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}

// GET /api/v1/leaderboard/me returns the caller's entry for every period.
func (h *LeaderboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	positions := make(map[leaderboard.Period]*leaderboard.LeaderboardEntry, 3)
	for _, period := range []leaderboard.Period{leaderboard.PeriodWeekly, leaderboard.PeriodMonthly, leaderboard.PeriodAllTime} {
		entry, err := h.leaderboardService.Position(ctx, period, userID)
		if err != nil && !errors.Is(err, user.ErrNotFound) {
			respondWithServiceError(w, err, "load leaderboard position")
			return
		}
		positions[period] = entry
	}

	respondWithJSON(w, http.StatusOK, positions)
}
