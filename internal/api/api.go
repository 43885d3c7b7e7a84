// Package api exposes the HTTP authentication endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/taskeroo/taskeroo/internal/auth"
)

// Authenticator obtains credentials, interactively if needed.
type Authenticator interface {
	Authenticate(ctx context.Context) (*auth.Credential, error)
}

type handlers struct {
	auth Authenticator
	log  zerolog.Logger
}

// NewRouter returns the HTTP routes:
//
//	GET  /                   welcome message
//	POST /auth/authenticate  run authentication
//
// Browser requests are allowed from allowedOrigins only.
func NewRouter(a Authenticator, log zerolog.Logger, allowedOrigins ...string) http.Handler {
	h := &handlers{auth: a, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", h.root)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/authenticate", h.authenticate)
	})
	return r
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Taskeroo API"})
}

func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Authenticate(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("authentication request failed")
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Authentication successful",
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
