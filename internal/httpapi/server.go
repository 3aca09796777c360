// Package httpapi exposes the pipeline orchestrator over HTTP: start,
// query, cancel, fetch the final result, and stream live progress over a
// websocket.
package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sullysaurus/venues/internal/orchestrator"
)

// Server wires the orchestrator to a ServeMux of REST and websocket routes.
type Server struct {
	orch   *orchestrator.Orchestrator
	mux    *http.ServeMux
	logger zerolog.Logger
}

func NewServer(orch *orchestrator.Orchestrator, logger zerolog.Logger) *Server {
	s := &Server{
		orch:   orch,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /pipelines", s.handleStart)
	s.mux.HandleFunc("GET /pipelines/{run_id}", s.handleQuery)
	s.mux.HandleFunc("GET /pipelines/{run_id}/result", s.handleResult)
	s.mux.HandleFunc("POST /pipelines/{run_id}/cancel", s.handleCancel)
	s.mux.HandleFunc("GET /pipelines/{run_id}/stream", s.handleStream)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("elapsed", time.Since(start)).
		Msg("request handled")
}
