package main

import (
	"net/http"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"focusQuestAPI/handlers"
	"focusQuestAPI/middleware"
)

// apiHandlers is everything the router mounts.
type apiHandlers struct {
	auth        *handlers.AuthHandler
	oauth       *handlers.OAuthHandler
	user        *handlers.UserHandler
	timer       *handlers.TimerHandler
	task        *handlers.TaskHandler
	project     *handlers.ProjectHandler
	leaderboard *handlers.LeaderboardHandler
	analytics   *handlers.AnalyticsHandler
	feedback    *handlers.FeedbackHandler
	pages       *handlers.PagesHandler
}

type routerOptions struct {
	authenticator  *middleware.Authenticator
	limiter        *middleware.RateLimiter
	metricsUser    string
	metricsPass    string
	allowedOrigins []string
}

func newRouter(h apiHandlers, opts routerOptions) http.Handler {
	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(opts.limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(opts.metricsUser, opts.metricsPass)(promhttp.Handler()))
	standardRouter.HandleFunc("/health", h.pages.Health).Methods("GET")
	standardRouter.HandleFunc("/sw.js", h.pages.ServiceWorker).Methods("GET")

	// -------------------------------------------------------------------------
	// AUTH
	// -------------------------------------------------------------------------
	authRouter := standardRouter.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", h.auth.Register).Methods("POST")
	authRouter.HandleFunc("/login", h.auth.Login).Methods("POST")
	authRouter.HandleFunc("/logout", h.auth.Logout).Methods("POST")
	authRouter.HandleFunc("/google", h.oauth.GoogleLogin).Methods("GET")
	authRouter.HandleFunc("/google/callback", h.oauth.GoogleCallback).Methods("GET")
	authRouter.Handle("/me", opts.authenticator.RequireAuth(http.HandlerFunc(h.auth.Me))).Methods("GET")

	// -------------------------------------------------------------------------
	// PUBLIC API
	// -------------------------------------------------------------------------
	standardRouter.Handle("/api/feedback", opts.authenticator.OptionalAuth(http.HandlerFunc(h.feedback.Submit))).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/version", h.pages.Version).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED API
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(opts.authenticator.RequireAuth)

	protected.HandleFunc("/user", h.user.GetProfile).Methods("GET")
	protected.HandleFunc("/user", h.user.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user", h.user.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/preferences", h.user.UpdatePreferences).Methods("PUT")
	protected.HandleFunc("/achievements", h.user.GetAchievements).Methods("GET")
	protected.HandleFunc("/skills", h.user.GetSkills).Methods("GET")

	protected.HandleFunc("/timer/start", h.timer.Start).Methods("POST")
	protected.HandleFunc("/timer/pause", h.timer.Pause).Methods("POST")
	protected.HandleFunc("/timer/resume", h.timer.Resume).Methods("POST")
	protected.HandleFunc("/timer/stop", h.timer.Stop).Methods("POST")
	protected.HandleFunc("/timer/active", h.timer.Active).Methods("GET")
	protected.HandleFunc("/timer/history", h.timer.History).Methods("GET")
	protected.HandleFunc("/timer/sync", h.timer.Sync).Methods("POST")
	protected.HandleFunc("/timer/ws", h.timer.Socket).Methods("GET")

	protected.HandleFunc("/tasks", h.task.List).Methods("GET")
	protected.HandleFunc("/tasks", h.task.Create).Methods("POST")
	protected.HandleFunc("/tasks/{id}", h.task.Get).Methods("GET")
	protected.HandleFunc("/tasks/{id}", h.task.Update).Methods("PUT")
	protected.HandleFunc("/tasks/{id}", h.task.Delete).Methods("DELETE")
	protected.HandleFunc("/tasks/{id}/complete", h.task.Complete).Methods("POST")

	protected.HandleFunc("/projects", h.project.List).Methods("GET")
	protected.HandleFunc("/projects", h.project.Create).Methods("POST")
	protected.HandleFunc("/projects/{id}", h.project.Get).Methods("GET")
	protected.HandleFunc("/projects/{id}", h.project.Update).Methods("PUT")
	protected.HandleFunc("/projects/{id}", h.project.Delete).Methods("DELETE")

	protected.HandleFunc("/leaderboard", h.leaderboard.Get).Methods("GET")
	protected.HandleFunc("/leaderboard/me", h.leaderboard.Me).Methods("GET")

	protected.HandleFunc("/analytics/summary", h.analytics.Summary).Methods("GET")
	protected.HandleFunc("/analytics/daily", h.analytics.Daily).Methods("GET")
	protected.HandleFunc("/analytics/projects", h.analytics.Projects).Methods("GET")

	// Web client, behind the page gate.
	standardRouter.PathPrefix("/").Handler(middleware.RouteGate(h.pages.App()))

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(opts.allowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Auth-State"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	return corsHandler(r)
}
