package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/conneroisu/stitch/internal/build"
	"github.com/conneroisu/stitch/internal/version"
)

// handleHealth returns the server health status for health checks
func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"version":   version.GetShortVersion(),
		"root":      s.opts.Root,
		"clients":   s.ClientCount(),
	}
	if report := s.lastReport(); report != nil {
		health["last_build"] = map[string]interface{}{
			"id":       report.ID,
			"failed":   report.Count(build.StatusFailed),
			"warnings": report.Count(build.StatusWarning),
		}
	}

	s.writeJSON(w, r, http.StatusOK, health)
}

// handleReport returns the last build report.
func (s *DevServer) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := s.lastReport()
	if report == nil {
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "no build yet"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, report)
}

func (s *DevServer) lastReport() *build.Report {
	if s.reports == nil {
		return nil
	}
	return s.reports.LastReport()
}

func (s *DevServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response")
	}
}
