// Package admin exposes the coordinator's control surface as small JSON
// endpoints for scripting and inspection.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"formationctl/internal/fleet"
)

// Server serves formation status and control over HTTP.
type Server struct {
	Coord *fleet.Coordinator
}

// NewServer wraps a coordinator.
func NewServer(c *fleet.Coordinator) *Server {
	return &Server{Coord: c}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/vehicles", s.handleVehicles)
	mux.HandleFunc("/pattern", s.handlePattern)
	mux.HandleFunc("/move", s.handleMove)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	return mux
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Coord.Status())
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Coord.Vehicles())
}

func (s *Server) handlePattern(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if err := s.Coord.SetPattern(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Coord.Status())
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	parse := func(key string) float64 {
		v, _ := strconv.ParseFloat(r.URL.Query().Get(key), 64)
		return v
	}
	center := s.Coord.MoveFormationBy(parse("dx"), parse("dy"), parse("dz"))
	writeJSON(w, map[string]any{"center": center})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.Coord.Start(r.Context())
	writeJSON(w, s.Coord.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Coord.Stop(r.Context())
	writeJSON(w, s.Coord.Status())
}
