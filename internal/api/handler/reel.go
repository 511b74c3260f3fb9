package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/rudrakspatel/reelforge/internal/api/middleware"
	"github.com/rudrakspatel/reelforge/internal/api/response"
	"github.com/rudrakspatel/reelforge/internal/compute"
	"github.com/rudrakspatel/reelforge/internal/reel"
	"github.com/rudrakspatel/reelforge/internal/store"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

// ReelStarter defines the interface the start handler depends on.
type ReelStarter interface {
	Start(ctx context.Context, projectID, userID uuid.UUID) (*models.ReelJob, error)
}

// HealthProber reports whether the compute service can take work right now.
type HealthProber interface {
	Probe(ctx context.Context) compute.Status
}

// ProjectReader is the subset of the store the reel handlers need.
type ProjectReader interface {
	GetProject(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Project, error)
	GetLatestReelJob(ctx context.Context, projectID uuid.UUID) (*models.ReelJob, error)
}

// NewStartReelHandler returns an http.HandlerFunc for
// POST /api/v1/projects/{projectID}/reel. The job is created synchronously
// and generation continues in the background; the response is a 202 with the
// job to poll.
func NewStartReelHandler(svc ReelStarter, gate HealthProber, projects ProjectReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := mw.GetAccountID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing account", nil)
			return
		}

		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectID must be a valid UUID", nil)
			return
		}

		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.UserID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required", nil)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be a valid UUID", nil)
			return
		}

		if _, err := projects.GetProject(r.Context(), projectID, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		// Refuse up front when the compute service cannot take work. The
		// alternative is accepting a job that fails on its first step.
		if status := gate.Probe(r.Context()); status != compute.StatusAvailable {
			response.Error(w, http.StatusServiceUnavailable, "SERVICE_SLEEPING",
				"The reel generation service is waking up, try again shortly",
				map[string]string{"compute_status": string(status)})
			return
		}

		job, err := svc.Start(r.Context(), projectID, userID)
		if err != nil {
			if errors.Is(err, store.ErrActiveJobExists) {
				response.Error(w, http.StatusConflict, "ACTIVE_JOB_EXISTS",
					"This project already has a reel job in progress", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Accepted(w, job)
	}
}

// NewLatestReelHandler returns an http.HandlerFunc for
// GET /api/v1/projects/{projectID}/reel.
func NewLatestReelHandler(projects ProjectReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := mw.GetAccountID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing account", nil)
			return
		}

		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectID must be a valid UUID", nil)
			return
		}

		if _, err := projects.GetProject(r.Context(), projectID, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		job, err := projects.GetLatestReelJob(r.Context(), projectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project has no reel jobs", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

var _ ReelStarter = (*reel.Service)(nil)
