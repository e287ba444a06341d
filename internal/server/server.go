package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/telos-app/telos/internal/engine"
	"github.com/telos-app/telos/internal/store"
)

// Server is the telos HTTP API server. It exposes logging, inference, and the
// review/confirm surface over JSON.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, engine, and version string.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
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

		r.Post("/actions", s.handleCreateAction)
		r.Get("/actions", s.handleListActions)
		r.Get("/actions/{actionID}/suggestions", s.handleActionSuggestions)

		r.Post("/goals", s.handleCreateGoal)
		r.Get("/goals", s.handleListGoals)
		r.Get("/goals/{goalID}/progress", s.handleGoalProgress)
		r.Get("/goals/{goalID}/relationships", s.handleGoalRelationships)

		r.Post("/infer", s.handleInfer)
		r.Get("/review", s.handleReview)

		r.Post("/relationships", s.handleCreateRelationship)
		r.Post("/relationships/{relationshipID}/confirm", s.handleConfirmRelationship)
		r.Delete("/relationships/{relationshipID}", s.handleRejectRelationship)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
