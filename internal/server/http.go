package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/version"
	"github.com/muurk/apsta/internal/wifi"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	wifi.Status

	// Seq is the sequence number of the latest event. Passing it as
	// "since" to /events yields only what follows this snapshot.
	Seq     uint64       `json:"seq"`
	Streams int          `json:"streams"`
	Version version.Info `json:"version"`
	Time    time.Time    `json:"time"`
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /version", s.handleVersion)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, StatusResponse{
		Status:  s.status.Status(),
		Seq:     s.hub.Seq(),
		Streams: s.ActiveStreams(),
		Version: version.Current(),
		Time:    time.Now().UTC(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, version.Current())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}
