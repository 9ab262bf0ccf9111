package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	UpdatePrices    http.HandlerFunc
	MonitoringStats http.HandlerFunc
	StationStatus   http.HandlerFunc
	StationAudit    http.HandlerFunc
	StatusFeed      http.HandlerFunc
	Health          http.HandlerFunc
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.UpdatePrices != nil {
		mux.Handle("/stations/prices", method(http.MethodPost, routes.UpdatePrices))
	}
	if routes.MonitoringStats != nil {
		mux.Handle("/monitoring/stats", method(http.MethodGet, routes.MonitoringStats))
	}
	if routes.StationStatus != nil {
		mux.Handle("/stations/status", method(http.MethodGet, routes.StationStatus))
	}
	if routes.StationAudit != nil {
		mux.Handle("/stations/audit", method(http.MethodGet, routes.StationAudit))
	}
	if routes.StatusFeed != nil {
		mux.Handle("/ws/status", method(http.MethodGet, routes.StatusFeed))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
