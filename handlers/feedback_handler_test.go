package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackHandler_Submit(t *testing.T) {
	svc := &fakeFeedback{}
	h := NewFeedbackHandler(svc)

	rec := httptest.NewRecorder()
	h.Submit(rec, newRequest(t, http.MethodPost, "/api/feedback", map[string]interface{}{
		"name":    "Ada",
		"email":   "ada@example.com",
		"message": "The streak flame is great",
		"rating":  5,
	}, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.userID)
	assert.Equal(t, testUserID, *svc.userID)
	assert.Contains(t, rec.Body.String(), "feedback-1")
}

func TestFeedbackHandler_Anonymous(t *testing.T) {
	svc := &fakeFeedback{}
	h := NewFeedbackHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"message": "hello"}`))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, svc.userID)
}

func TestFeedbackHandler_Validation(t *testing.T) {
	svc := &fakeFeedback{}
	h := NewFeedbackHandler(svc)

	for name, body := range map[string]string{
		"missing message":     `{"name": "Ada"}`,
		"message too long":    `{"message": "` + strings.Repeat("a", 5001) + `"}`,
		"rating out of range": `{"message": "hi", "rating": 9}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Submit(rec, newRequest(t, http.MethodPost, "/api/feedback", body, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Nil(t, svc.req)
}
