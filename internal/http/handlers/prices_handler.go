package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"fuelsign/internal/service"
)

const actorIDHeader = "X-Actor-ID"

// updatePricesRequest carries raw price input; fields stay untyped so
// sanitization can absorb whatever the client sends.
type updatePricesRequest struct {
	StationID string         `json:"station_id"`
	Prices    map[string]any `json:"prices"`
}

// NewUpdatePricesHandler returns POST /stations/prices handler.
func NewUpdatePricesHandler(svc *service.PricingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updatePricesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.StationID == "" {
			writeError(w, http.StatusBadRequest, "station_id is required")
			return
		}

		actorID := r.Header.Get(actorIDHeader)
		prices := service.SanitizePrices(req.Prices)

		result := svc.UpdatePrices(r.Context(), req.StationID, prices, actorID)

		status := http.StatusOK
		if !result.Success {
			switch {
			case hasKind(result, service.KindValidation):
				status = http.StatusBadRequest
			case hasKind(result, service.KindStationNotFound), hasKind(result, service.KindPanelNotFound):
				status = http.StatusNotFound
			default:
				// Partial failure still returns the aggregate for the
				// caller to inspect.
				status = http.StatusBadGateway
			}
		}

		logger.Info("price update requested",
			zap.String("station_id", req.StationID),
			zap.String("actor_id", actorID),
			zap.Int("panels_updated", result.PanelsUpdated),
			zap.Bool("success", result.Success))
		writeJSON(w, status, result)
	}
}

func hasKind(result service.UpdateResult, kind string) bool {
	for _, e := range result.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
