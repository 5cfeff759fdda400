package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusQuestAPI/internal/auth"
	"focusQuestAPI/internal/user"
)

func newAuthHandler(users *fakeUsers) (*AuthHandler, *auth.TokenManager) {
	tokens := auth.NewTokenManager("handler-test-secret", 7*24*time.Hour)
	return NewAuthHandler(users, tokens, CookieOptions{TTL: tokens.TTL()}), tokens
}

func authCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func TestAuthHandler_RegisterIssuesTokenAndCookie(t *testing.T) {
	h, tokens := newAuthHandler(newFakeUsers())

	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "ada",
		"email":    " Ada@Example.com ",
		"password": "correct-horse",
	}, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp user.AuthResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ada@example.com", resp.User.Email, "email is normalised")

	claims, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.Subject)

	cookie := authCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	h, _ := newAuthHandler(newFakeUsers())

	cases := map[string]map[string]string{
		"short password": {"username": "ada", "email": "ada@example.com", "password": "short"},
		"bad email":      {"username": "ada", "email": "not-an-email", "password": "correct-horse"},
		"short username": {"username": "a", "email": "ada@example.com", "password": "correct-horse"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, newRequest(t, http.MethodPost, "/auth/register", body, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, authCookie(rec))
		})
	}

	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, http.MethodPost, "/auth/register", "{not json", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_RegisterDuplicateIsConflict(t *testing.T) {
	users := newFakeUsers()
	users.users["existing"] = &user.User{ID: "existing", Email: "ada@example.com"}
	h, _ := newAuthHandler(users)

	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "ada", "email": "ada@example.com", "password": "correct-horse",
	}, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	users := newFakeUsers()
	users.users[testUserID] = &user.User{ID: testUserID, Username: "ada", Email: "ada@example.com"}
	h, _ := newAuthHandler(users)

	rec := httptest.NewRecorder()
	h.Login(rec, newRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	}, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, authCookie(rec))

	rec = httptest.NewRecorder()
	h.Login(rec, newRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, newRequest(t, http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_LogoutClearsCookie(t *testing.T) {
	h, _ := newAuthHandler(newFakeUsers())

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := authCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestAuthHandler_Me(t *testing.T) {
	users := newFakeUsers()
	users.users[testUserID] = &user.User{ID: testUserID, Username: "ada"}
	h, _ := newAuthHandler(users)

	rec := httptest.NewRecorder()
	h.Me(rec, newRequest(t, http.MethodGet, "/auth/me", nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
