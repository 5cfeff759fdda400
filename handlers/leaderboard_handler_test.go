package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusQuestAPI/internal/leaderboard"
)

func TestLeaderboardHandler_Get(t *testing.T) {
	svc := &fakeLeaderboard{}
	h := NewLeaderboardHandler(svc)

	rec := httptest.NewRecorder()
	h.Get(rec, newRequest(t, http.MethodGet, "/api/v1/leaderboard", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, leaderboard.PeriodAllTime, svc.period)
	assert.Equal(t, leaderboard.DefaultLimit, svc.limit)

	rec = httptest.NewRecorder()
	h.Get(rec, newRequest(t, http.MethodGet, "/api/v1/leaderboard?period=weekly&limit=10", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, leaderboard.PeriodWeekly, svc.period)
	assert.Equal(t, 10, svc.limit)

	rec = httptest.NewRecorder()
	h.Get(rec, newRequest(t, http.MethodGet, "/api/v1/leaderboard?period=daily", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardHandler_MeListsEveryPeriod(t *testing.T) {
	svc := &fakeLeaderboard{position: map[leaderboard.Period]*leaderboard.LeaderboardEntry{
		leaderboard.PeriodAllTime: {Rank: 4, UserID: testUserID, XP: 1200},
	}}
	h := NewLeaderboardHandler(svc)

	rec := httptest.NewRecorder()
	h.Me(rec, newRequest(t, http.MethodGet, "/api/v1/leaderboard/me", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]*leaderboard.LeaderboardEntry
	decodeBody(t, rec, &body)
	require.Contains(t, body, "all-time")
	assert.Equal(t, 4, body["all-time"].Rank)
	assert.Nil(t, body["weekly"], "no activity this week")
	assert.Nil(t, body["monthly"])
}

func TestAnalyticsHandler_ClampsDays(t *testing.T) {
	svc := &fakeAnalytics{}
	h := NewAnalyticsHandler(svc)

	rec := httptest.NewRecorder()
	h.Daily(rec, newRequest(t, http.MethodGet, "/api/v1/analytics/daily", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.days)

	rec = httptest.NewRecorder()
	h.Daily(rec, newRequest(t, http.MethodGet, "/api/v1/analytics/daily?days=1000", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90, svc.days)

	rec = httptest.NewRecorder()
	h.Projects(rec, newRequest(t, http.MethodGet, "/api/v1/analytics/projects", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, svc.days)

	rec = httptest.NewRecorder()
	h.Summary(rec, newRequest(t, http.MethodGet, "/api/v1/analytics/summary", nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
