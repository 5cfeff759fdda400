package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"focusQuestAPI/internal/auth"
	"focusQuestAPI/middleware"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
	oauthFailedPath  = "/login?error=oauth_failed"
)

type OAuthHandler struct {
	google  GoogleAuthenticator
	tokens  *auth.TokenManager
	cookies CookieOptions
	appURL  string
}

// NewOAuthHandler builds the Google sign-in handler. google may be nil when
// OAuth is not configured.
func NewOAuthHandler(google GoogleAuthenticator, tokens *auth.TokenManager, cookies CookieOptions, appURL string) *OAuthHandler {
	return &OAuthHandler{
		google:  google,
		tokens:  tokens,
		cookies: cookies,
		appURL:  strings.TrimRight(appURL, "/"),
	}
}

// GET /auth/google
func (h *OAuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	nonce, err := randomState()
	if err != nil {
		zap.S().Errorf("Failed to generate oauth state: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}

	// the cookie carries "nonce|redirect" so the callback can restore the target page
	value := nonce + "|" + safeRedirect(r.URL.Query().Get("redirect"))
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(value)),
		Path:     "/auth/google",
		MaxAge:   int(oauthStateTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthCodeURL(nonce), http.StatusTemporaryRedirect)
}

// GET /auth/google/callback
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	nonce, redirect, ok := h.readState(r)
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/auth/google", MaxAge: -1})

	if !ok || r.URL.Query().Get("state") != nonce {
		zap.S().Warn("OAuth callback with missing or mismatched state")
		h.fail(w, r)
		return
	}
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		zap.S().Infof("Google sign-in declined: %s", errParam)
		h.fail(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.fail(w, r)
		return
	}

	u, err := h.google.Authenticate(ctx, code)
	if err != nil {
		zap.S().Errorf("Google sign-in failed: %v", err)
		h.fail(w, r)
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Username, u.Email)
	if err != nil {
		zap.S().Errorf("Failed to issue token for %s: %v", u.ID, err)
		h.fail(w, r)
		return
	}

	setAuthCookie(w, h.cookies, token)
	http.Redirect(w, r, h.appURL+redirect, http.StatusFound)
}

func (h *OAuthHandler) readState(r *http.Request) (nonce, redirect string, ok bool) {
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" {
		return "", "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return "", "", false
	}
	nonce, redirect, found := strings.Cut(string(raw), "|")
	if !found || nonce == "" {
		return "", "", false
	}
	return nonce, safeRedirect(redirect), true
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.appURL+oauthFailedPath, http.StatusFound)
}

// safeRedirect only allows local paths, defaulting to the projects page.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return middleware.AfterLoginPath
	}
	if u, err := url.Parse(target); err != nil || u.Host != "" || u.Scheme != "" {
		return middleware.AfterLoginPath
	}
	return target
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
