package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aristath/frontier/internal/charts"
	"github.com/aristath/frontier/internal/services"
)

// handleHealth reports liveness, including a database ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.QuickCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "frontier",
		"version": s.version,
	})
}

// handleFrontierLatest returns the most recent run result.
func (s *Server) handleFrontierLatest(w http.ResponseWriter, r *http.Request) {
	result, err := charts.LoadLatest(s.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeError(w, http.StatusNotFound, "no frontier run has completed yet")
			return
		}
		s.log.Error().Err(err).Msg("Failed to load latest frontier result")
		s.writeError(w, http.StatusInternalServerError, "failed to load latest frontier result")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleFrontierRun triggers a frontier run. The optional JSON body
// overrides the configured symbols, window, and solver knobs; runs are
// serialized, a concurrent trigger gets 409.
func (s *Server) handleFrontierRun(w http.ResponseWriter, r *http.Request) {
	var req *services.RunRequest
	if r.ContentLength != 0 {
		req = &services.RunRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("Frontier run failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleFrontierChart returns the latest frontier chart as PNG.
func (s *Server) handleFrontierChart(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(charts.LatestPNGPath(s.cfg.DataDir))
	if err != nil {
		if os.IsNotExist(err) {
			s.writeError(w, http.StatusNotFound, "no frontier chart has been rendered yet")
			return
		}
		s.log.Error().Err(err).Msg("Failed to read latest frontier chart")
		s.writeError(w, http.StatusInternalServerError, "failed to read latest frontier chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to write chart response")
	}
}

// handleAssetDiagnostics returns the indicator snapshot for the
// configured basket over the configured window.
func (s *Server) handleAssetDiagnostics(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.cfg.DateRange()
	if err != nil {
		s.log.Error().Err(err).Msg("Invalid configured date range")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	assets := s.diagnostics.ForSymbols(r.Context(), s.cfg.Symbols, start, end)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"start":  s.cfg.StartDate,
		"end":    s.cfg.EndDate,
		"assets": assets,
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
