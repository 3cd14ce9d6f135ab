package handlers

import (
	"net/http"
)

// Health reports process liveness. Pipeline health is observable through
// per-video job states and the Prometheus counters, not this endpoint.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
