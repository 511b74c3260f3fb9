package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/rudrakspatel/reelforge/internal/api/middleware"
	"github.com/rudrakspatel/reelforge/internal/api/response"
	"github.com/rudrakspatel/reelforge/internal/cache"
	"github.com/rudrakspatel/reelforge/internal/reel"
	"github.com/rudrakspatel/reelforge/internal/store"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

// JobReader is the subset of the store the job handlers need.
type JobReader interface {
	GetReelJob(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.ReelJob, error)
}

// ReelCanceller defines the interface the cancel handler depends on.
type ReelCanceller interface {
	Cancel(ctx context.Context, jobID uuid.UUID) error
}

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// The store is the source of truth; clients poll this until a terminal status.
func NewPollJobHandler(jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := mw.GetAccountID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing account", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := jobs.GetReelJob(r.Context(), jobID, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Reel job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewJobStatusHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/status. Status-only polling served from Redis
// when possible, so high-frequency pollers skip the database.
func NewJobStatusHandler(jobs JobReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := mw.GetAccountID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing account", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		if status, found, err := c.GetJobStatus(r.Context(), jobID); err == nil && found {
			response.JSON(w, map[string]string{"id": jobID.String(), "status": status})
			return
		}

		job, err := jobs.GetReelJob(r.Context(), jobID, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Reel job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]string{"id": job.ID.String(), "status": job.Status})
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{jobID}/cancel.
func NewCancelJobHandler(jobs JobReader, svc ReelCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := mw.GetAccountID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing account", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		// Scope check before the write.
		if _, err := jobs.GetReelJob(r.Context(), jobID, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Reel job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		if err := svc.Cancel(r.Context(), jobID); err != nil {
			switch {
			case errors.Is(err, reel.ErrAlreadyFinished):
				response.Error(w, http.StatusConflict, "JOB_FINISHED",
					"The reel job already finished and cannot be cancelled", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Reel job not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}

		job, err := jobs.GetReelJob(r.Context(), jobID, accountID)
		if err != nil {
			// Cancel succeeded; report the terminal state even if the re-read failed.
			response.JSON(w, map[string]string{"id": jobID.String(), "status": models.JobStatusFailed})
			return
		}
		response.JSON(w, job)
	}
}

var _ ReelCanceller = (*reel.Service)(nil)
