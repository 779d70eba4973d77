package server

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// StaticDir, when set, is served for non-API paths with index.html fallback.
	StaticDir string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(h.NotFound)
		r.MethodNotAllowed(h.MethodNotAllowed)

		r.Post("/generate-video", h.GenerateVideo)
		// Job ids may contain slashes (Gemini operation names).
		r.Get("/video-result/*", h.VideoResult)
	})

	if cfg.StaticDir != "" {
		static := spaHandler(cfg.StaticDir, h.NotFound)
		r.Get("/*", static)
		r.Head("/*", static)
	}

	return r
}

// spaHandler serves files from dir, falling back to dir/index.html for
// paths that do not name a regular file.
func spaHandler(dir string, notFound http.HandlerFunc) http.HandlerFunc {
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if clean == "/api" || strings.HasPrefix(clean, "/api/") {
			notFound(w, r)
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(clean))
		if info, err := os.Stat(name); err == nil && info.Mode().IsRegular() {
			http.ServeFile(w, r, name)
			return
		}

		if _, err := os.Stat(index); err != nil {
			notFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}
