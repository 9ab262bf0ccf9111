package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"fuelsign/internal/monitor"
	"fuelsign/internal/repository"
)

// NewMonitoringStatsHandler returns GET /monitoring/stats handler.
func NewMonitoringStatsHandler(m *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.GetMonitoringStats())
	}
}

// NewStationStatusHandler returns GET /stations/status handler serving
// the monitor's live connectivity table.
func NewStationStatusHandler(m *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stationID := r.URL.Query().Get("station_id"); stationID != "" {
			status, ok := m.GetStatus(stationID)
			if !ok {
				writeError(w, http.StatusNotFound, "station is not monitored")
				return
			}
			writeJSON(w, http.StatusOK, status)
			return
		}
		writeJSON(w, http.StatusOK, m.Statuses())
	}
}

// NewStationAuditHandler returns GET /stations/audit handler.
func NewStationAuditHandler(repo *repository.AuditRepository, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stationID := r.URL.Query().Get("station_id")
		if stationID == "" {
			writeError(w, http.StatusBadRequest, "station_id is required")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		entries, err := repo.ListByStation(r.Context(), stationID, limit)
		if err != nil {
			logger.Error("audit lookup failed", zap.String("station_id", stationID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to fetch audit entries")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"entries": entries,
		})
	}
}

// NewHealthHandler returns GET /health handler.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
