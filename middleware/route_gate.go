package middleware

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"focusQuestAPI/internal/auth"
)

type RouteClass int

const (
	RouteUnlisted RouteClass = iota
	RoutePublic
	RouteAuthOnly
	RouteProtected
)

const (
	LoginPath         = "/login"
	AfterLoginPath    = "/projects"
	AuthStateHeader   = "x-auth-state"
	authStateLoggedIn = "authenticated"
)

var (
	publicRoutes    = []string{"/", "/about", "/privacy", "/terms", "/offline"}
	authOnlyRoutes  = []string{"/login", "/register", "/forgot-password"}
	protectedRoutes = []string{
		"/projects", "/dashboard", "/timer", "/tasks", "/leaderboard",
		"/achievements", "/skills", "/analytics", "/profile", "/settings",
	}
)

// ClassifyRoute places a page path in one of the route lists. A path
// matches an entry when equal to it or nested under it.
func ClassifyRoute(p string) RouteClass {
	switch {
	case matchesAny(p, protectedRoutes):
		return RouteProtected
	case matchesAny(p, authOnlyRoutes):
		return RouteAuthOnly
	case p == "/" || matchesAny(p, publicRoutes[1:]):
		return RoutePublic
	}
	return RouteUnlisted
}

func matchesAny(p string, routes []string) bool {
	for _, route := range routes {
		if p == route || strings.HasPrefix(p, route+"/") {
			return true
		}
	}
	return false
}

// IsAuthenticated is a presence check on the auth cookie or the auth-state
// header. It does not verify the token; API routes do that.
func IsAuthenticated(r *http.Request) bool {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		return true
	}
	return r.Header.Get(AuthStateHeader) == authStateLoggedIn
}

func bypassesGate(p string) bool {
	switch {
	case strings.HasPrefix(p, "/_next/"),
		strings.HasPrefix(p, "/assets/"),
		strings.HasPrefix(p, "/api/"),
		strings.HasPrefix(p, "/auth/"):
		return true
	}
	return path.Ext(p) != ""
}

// RouteGate redirects page requests according to auth state before they
// reach the front-end handler.
func RouteGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if bypassesGate(p) {
			next.ServeHTTP(w, r)
			return
		}

		switch ClassifyRoute(p) {
		case RouteProtected:
			if !IsAuthenticated(r) {
				target := LoginPath + "?redirect=" + url.QueryEscape(p)
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}
		case RouteAuthOnly:
			if IsAuthenticated(r) {
				http.Redirect(w, r, AfterLoginPath, http.StatusTemporaryRedirect)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
