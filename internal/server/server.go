// Package server provides the HTTP server for the exercise engine.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/vyayama/internal/app"
	"github.com/ayusman/vyayama/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	App       *app.App
	StaticDir string
	Log       logs.Log
}

// Server represents the HTTP server.
type Server struct {
	config Config
	router *httprouter.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log, _ = logs.NewLog()
	}
	s := &Server{
		config: config,
		router: httprouter.New(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)

	if s.config.App != nil {
		api.NewExerciseHandler(s.config.App).Register(s.router)
		api.NewSessionHandler(s.config.App).Register(s.router)
		s.router.Handler(http.MethodGet, "/api/sessions/live", NewLiveHandler(s.config.App, s.config.Log))
		s.router.Handler(http.MethodGet, "/api/stream", NewStreamHandler(s.config.App))
	}

	if s.config.StaticDir != "" {
		s.router.NotFound = http.FileServer(http.Dir(s.config.StaticDir))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["session"] = s.config.App.Status()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.config.Log.Infof("Listening on %v", addr)
	return http.ListenAndServe(addr, s)
}
