package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smukkama/sentinel-server/internal/database"
)

const (
	defaultAlertLimit  = 100
	maxAlertLimit      = 1000
	defaultExportLimit = 1000
	maxExportLimit     = 10000
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.alerts.Active(r.Context(), currentUserID(r))
	if err != nil {
		s.internalError(w, r, "Failed to list alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleAllAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultAlertLimit, maxAlertLimit)
	alerts, err := s.alerts.All(r.Context(), currentUserID(r), limit)
	if err != nil {
		s.internalError(w, r, "Failed to list alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(chi.URLParam(r, "alertId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input", map[string]string{"alertId": "must be a UUID"})
		return
	}

	alert, err := s.alerts.Resolve(r.Context(), currentUserID(r), alertID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found", nil)
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to resolve alert", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alert": alert})
}

func (s *Server) handleExportAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultExportLimit, maxExportLimit)
	data, err := s.alerts.ExportCrew(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "Failed to export alerts", err)
		return
	}

	filename := fmt.Sprintf("alerts-%s.xlsx", s.now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
