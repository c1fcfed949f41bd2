package api

import (
	"net/http"
	"time"
)

type healthBody struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth is the liveness probe: the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, healthBody{Status: "healthy", Timestamp: time.Now().UTC()})
}

// handleReady is the readiness probe: the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, s.logger, http.StatusServiceUnavailable, healthBody{Status: "unavailable", Timestamp: time.Now().UTC()})
			return
		}
	}
	writeJSON(w, s.logger, http.StatusOK, healthBody{Status: "ready", Timestamp: time.Now().UTC()})
}
