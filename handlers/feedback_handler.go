package handlers

import (
	"context"
	"net/http"
	"time"

	"focusQuestAPI/internal/feedback"
	"focusQuestAPI/middleware"
)

type FeedbackHandler struct {
	feedbackService FeedbackSubmitter
}

func NewFeedbackHandler(feedbackService FeedbackSubmitter) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// POST /api/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req feedback.CreateFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var userID *string
	if id, ok := middleware.GetUserID(ctx); ok {
		userID = &id
	}

	fb, err := h.feedbackService.Submit(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, err, "submit feedback")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Feedback sent successfully",
		"id":      fb.ID,
	})
}
