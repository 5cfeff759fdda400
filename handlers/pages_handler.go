package handlers

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// PagesHandler serves the built web client, the service worker and the
// small unauthenticated endpoints the client polls.
type PagesHandler struct {
	webDir  string
	version string
	db      Pinger
}

func NewPagesHandler(webDir, version string, db Pinger) *PagesHandler {
	return &PagesHandler{webDir: webDir, version: version, db: db}
}

// GET /health
func (h *PagesHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "focusquest-api"})
}

// GET /api/v1/version
func (h *PagesHandler) Version(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

// GET /sw.js
func (h *PagesHandler) ServiceWorker(w http.ResponseWriter, r *http.Request) {
	if h.webDir == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Header().Set("Content-Type", "application/javascript")
	http.ServeFile(w, r, filepath.Join(h.webDir, "sw.js"))
}

// App serves files from the web build, falling back to index.html for
// client-side routes.
func (h *PagesHandler) App() http.Handler {
	if h.webDir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respondWithError(w, http.StatusNotFound, "Not found")
		})
	}

	files := http.FileServer(http.Dir(h.webDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		full := filepath.Join(h.webDir, filepath.FromSlash(clean))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		if path.Ext(clean) != "" || strings.HasPrefix(clean, "/api/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filepath.Join(h.webDir, "index.html"))
	})
}
