package handler

import (
	"net/http"

	"github.com/rudrakspatel/reelforge/internal/api/response"
)

// NewComputeHealthHandler returns an http.HandlerFunc for
// GET /api/v1/compute/health. It probes the compute service on every call;
// the UI uses this to warn hosts before they hit "Generate".
func NewComputeHealthHandler(gate HealthProber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := gate.Probe(r.Context())
		response.JSON(w, map[string]string{"status": string(status)})
	}
}
