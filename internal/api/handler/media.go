package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rudrakspatel/reelforge/internal/api/response"
	"github.com/rudrakspatel/reelforge/internal/readiness"
)

// MediaProbes holds one readiness probe per asset kind.
type MediaProbes struct {
	Thumbnail *readiness.Probe
	Playback  *readiness.Probe
}

// NewMediaReadyHandler returns an http.HandlerFunc for
// GET /api/v1/media/{assetID}/ready?kind=thumbnail|playback. One check per
// request; retry loops belong on the client, not in a handler holding a
// connection open.
func NewMediaReadyHandler(probes MediaProbes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := chi.URLParam(r, "assetID")
		if assetID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "assetID is required", nil)
			return
		}

		kind := r.URL.Query().Get("kind")
		if kind == "" {
			kind = "thumbnail"
		}

		var probe *readiness.Probe
		switch kind {
		case "thumbnail":
			probe = probes.Thumbnail
		case "playback":
			probe = probes.Playback
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"kind must be thumbnail or playback", nil)
			return
		}

		// A failed check still has a meaningful state to report.
		state, _ := probe.Check(r.Context(), assetID)

		response.JSON(w, map[string]string{
			"asset_id": assetID,
			"kind":     kind,
			"state":    string(state),
		})
	}
}
