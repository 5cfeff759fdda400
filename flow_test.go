package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusQuestAPI/handlers"
	"focusQuestAPI/internal/achievement"
	"focusQuestAPI/internal/auth"
	"focusQuestAPI/internal/mailer"
	"focusQuestAPI/internal/testutil"
	"focusQuestAPI/internal/user"
	"focusQuestAPI/middleware"
	"focusQuestAPI/services"
)

// TestFullSignUpAndFocusFlow drives the API the way the web client does:
// register, create a task, run the timer, complete the task, then read the
// leaderboard and profile with the cookie the server issued.
func TestFullSignUpAndFocusFlow(t *testing.T) {
	pool := testutil.SetupTestDB(t)

	catalog, err := achievement.LoadCatalog()
	require.NoError(t, err)

	userService := services.NewUserService(pool)
	achievementService := services.NewAchievementService(pool, catalog, userService)
	hub := services.NewTimerHub()
	go hub.Run()
	defer hub.Stop()
	dispatcher := services.NewEmailDispatcher(mailer.LogMailer{}, 1, 10)
	defer dispatcher.Stop()

	tokens := auth.NewTokenManager("flow-test-secret", time.Hour)
	cookies := handlers.CookieOptions{TTL: time.Hour}

	router := newRouter(apiHandlers{
		auth:        handlers.NewAuthHandler(userService, tokens, cookies),
		oauth:       handlers.NewOAuthHandler(nil, tokens, cookies, "http://localhost:3000"),
		user:        handlers.NewUserHandler(userService, achievementService, cookies),
		timer:       handlers.NewTimerHandler(services.NewTimerService(pool, userService, achievementService, hub), hub, nil),
		task:        handlers.NewTaskHandler(services.NewTaskService(pool, userService, achievementService)),
		project:     handlers.NewProjectHandler(services.NewProjectService(pool, achievementService)),
		leaderboard: handlers.NewLeaderboardHandler(services.NewLeaderboardService(pool, nil)),
		analytics:   handlers.NewAnalyticsHandler(services.NewAnalyticsService(pool)),
		feedback:    handlers.NewFeedbackHandler(services.NewFeedbackService(pool, dispatcher, "owner@example.com")),
		pages:       handlers.NewPagesHandler("", "test", pool),
	}, routerOptions{
		authenticator:  middleware.NewAuthenticator(tokens),
		limiter:        middleware.NewRateLimiter(1000, 1000),
		allowedOrigins: []string{"*"},
	})

	var cookie *http.Cookie
	call := func(method, target string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set("Content-Type", "application/json")
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Log("Step 1: register")
	rec := call(http.MethodPost, "/auth/register", map[string]string{
		"username": "flow_" + uuid.NewString()[:8],
		"email":    testutil.UniqueEmail(),
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "register sets the auth cookie")

	t.Log("Step 2: the cookie unlocks protected pages and API routes")
	rec = call(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))

	t.Log("Step 3: create and start work on a task")
	rec = call(http.MethodPost, "/api/v1/tasks", map[string]string{"title": "Write the report", "priority": "low"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = call(http.MethodPost, "/api/v1/timer/start", map[string]string{"taskId": created.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(http.MethodPost, "/api/v1/timer/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(http.MethodPost, "/api/v1/timer/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Log("Step 4: complete the task once")
	rec = call(http.MethodPost, "/api/v1/tasks/"+created.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed struct {
		XPEarned int64 `json:"xpEarned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.GreaterOrEqual(t, completed.XPEarned, int64(10))

	t.Log("Step 5: the user shows up on the leaderboard")
	rec = call(http.MethodGet, "/api/v1/leaderboard?period=weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board struct {
		UserPosition *struct {
			UserID string `json:"userId"`
		} `json:"userPosition"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.NotNil(t, board.UserPosition)
	assert.Equal(t, me.ID, board.UserPosition.UserID)

	t.Log("Step 6: logout clears the session")
	rec = call(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie = nil
	rec = call(http.MethodGet, "/api/v1/user", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
