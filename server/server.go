// Package server is the HTTP surface for the view activation trigger:
// the dashboard UI tells it which 3D views became visible and pulls the
// decimated meshes back out. The UI itself lives elsewhere; only the
// trigger and the mesh hand-off cross this boundary.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spaghettifunk/dataverse/engine"
	"github.com/spaghettifunk/dataverse/engine/core"
)

// Server is the dataverse HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over an initialized engine.
func New(e *engine.Engine, version string) *Server {
	s := &Server{
		engine:  e,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/assets", s.handleListAssets)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/views/{assetID}", func(r chi.Router) {
			r.Post("/activate", s.handleActivate)
			r.Post("/deactivate", s.handleDeactivate)
			r.Get("/", s.handleViewState)
			r.Get("/mesh", s.handleViewMesh)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	catalogOK := true
	if err := s.engine.Catalog().Ping(); err != nil {
		catalogOK = false
		core.LogWarn("health: catalog ping failed: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"catalog": catalogOK,
		"assets":  s.engine.Assets().Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
