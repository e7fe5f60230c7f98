package handler

import "net/http"

// Health handles GET /health for load balancer checks.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
