package api

import (
	"errors"
	"net/http"

	"github.com/smukkama/sentinel-server/internal/anomaly"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/validation"
)

const (
	defaultReadingLimit = 50
	maxReadingLimit     = 1000
	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30
)

// readingResponse keeps anomalies null rather than [] when the reading is normal
type readingResponse struct {
	Reading   any               `json:"reading"`
	Anomalies []anomaly.Anomaly `json:"anomalies"`
}

func (s *Server) handleCreateHealthReading(w http.ResponseWriter, r *http.Request) {
	var req validation.HealthReading
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.telemetry.IngestHealth(r.Context(), currentUserID(r), req.Reading(), req.At())
	if err != nil {
		s.internalError(w, r, "Failed to record health reading", err)
		return
	}
	writeJSON(w, http.StatusCreated, readingResponse{Reading: result.Reading, Anomalies: result.Anomalies})
}

func (s *Server) handleListHealthReadings(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultReadingLimit, maxReadingLimit)
	readings, err := s.telemetry.HealthReadings(r.Context(), currentUserID(r), limit)
	if err != nil {
		s.internalError(w, r, "Failed to list health readings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (s *Server) handleLatestVitals(w http.ResponseWriter, r *http.Request) {
	vitals, err := s.telemetry.LatestVitals(r.Context(), currentUserID(r))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No health readings found", nil)
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to load vitals", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vitals": vitals})
}

func (s *Server) handleHealthHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultHistoryHours, maxHistoryHours)
	history, err := s.telemetry.HealthHistory(r.Context(), currentUserID(r), hours)
	if err != nil {
		s.internalError(w, r, "Failed to load health history", err)
		return
	}
	if history == nil {
		history = []*database.HealthHourly{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleCreateSystemReading(w http.ResponseWriter, r *http.Request) {
	var req validation.SystemReading
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.telemetry.IngestSystem(r.Context(), currentUserID(r), req.Reading(), req.At())
	if err != nil {
		s.internalError(w, r, "Failed to record system reading", err)
		return
	}
	writeJSON(w, http.StatusCreated, readingResponse{Reading: result.Reading, Anomalies: result.Anomalies})
}

func (s *Server) handleListSystemReadings(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultReadingLimit, maxReadingLimit)
	readings, err := s.telemetry.SystemReadings(r.Context(), currentUserID(r), limit)
	if err != nil {
		s.internalError(w, r, "Failed to list system readings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.telemetry.SystemStatus(r.Context(), currentUserID(r))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No system readings found", nil)
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to load system status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}
