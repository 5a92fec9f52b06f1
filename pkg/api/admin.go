package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klazomenai/provider-static-server/pkg/metrics"
)

// HealthChecker reports the state of the asset directory
type HealthChecker interface {
	Healthy() bool
	LastError() error
}

// NewAdminRouter serves /metrics and /healthz on the admin listener, kept
// apart from the asset namespace of the main listener.
func NewAdminRouter(m *metrics.Metrics, health HealthChecker) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", m.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !health.Healthy() {
			message := ""
			if err := health.LastError(); err != nil {
				message = err.Error()
			}
			sendError(w, http.StatusServiceUnavailable, "unhealthy", message)
			return
		}
		sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods("GET", "HEAD")
	return router
}
