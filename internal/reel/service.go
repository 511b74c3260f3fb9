// Package reel owns the highlight-reel job engine: creating jobs, advancing
// them through the fixed processing steps in a detached goroutine, and
// honoring user cancellation between steps.
package reel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/internal/cache"
	"github.com/rudrakspatel/reelforge/internal/compute"
	"github.com/rudrakspatel/reelforge/internal/metrics"
	"github.com/rudrakspatel/reelforge/internal/store"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

// DefaultSteps is the fixed processing pipeline. Every step but the last asks
// the compute service for moments; the last cuts the reel from everything
// found so far.
var DefaultSteps = []string{
	"preprocessing",
	"scene-detection",
	"audio-analysis",
	"emotion-detection",
	"final-compilation",
}

// ErrAlreadyFinished is returned by Cancel when the job reached a terminal
// status first.
var ErrAlreadyFinished = errors.New("reel job already finished")

// Options tune the orchestration loop. Zero values use production defaults.
type Options struct {
	Steps          []string
	StepTimeout    time.Duration
	StatusCacheTTL time.Duration
}

// Service orchestrates reel jobs.
type Service struct {
	store     store.Store
	cache     cache.Cache
	compute   compute.Client
	steps     []string
	stepTO    time.Duration
	statusTTL time.Duration
}

// NewService creates the orchestrator.
func NewService(st store.Store, ca cache.Cache, client compute.Client, opts Options) *Service {
	steps := opts.Steps
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	stepTO := opts.StepTimeout
	if stepTO <= 0 {
		stepTO = 2 * time.Minute
	}
	statusTTL := opts.StatusCacheTTL
	if statusTTL <= 0 {
		statusTTL = 30 * time.Minute
	}
	return &Service{
		store:     st,
		cache:     ca,
		compute:   client,
		steps:     steps,
		stepTO:    stepTO,
		statusTTL: statusTTL,
	}
}

// Start inserts the job record and dispatches processing in a background
// goroutine. It returns the job immediately without waiting for processing to
// finish. At most one non-terminal job may exist per project; a second Start
// returns store.ErrActiveJobExists.
func (s *Service) Start(ctx context.Context, projectID, userID uuid.UUID) (*models.ReelJob, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("invalid project: ID is required")
	}

	now := time.Now().UTC()
	job := &models.ReelJob{
		ID:              uuid.New(),
		ProjectID:       projectID,
		UserID:          userID,
		Status:          models.JobStatusProcessing,
		Progress:        0,
		DetectedMoments: []models.Moment{},
		StartedAt:       &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateReelJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating reel job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, job.Status, s.statusTTL)
	metrics.JobsStartedTotal.Inc()

	go s.run(job.ID, job.ProjectID, now)

	return job, nil
}

// Cancel writes the terminal failed status with the reserved cancellation
// message. It does not signal the running orchestrator goroutine: the
// goroutine observes the terminal status at its next step boundary and stops.
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) error {
	err := s.store.FinishReelJob(ctx, jobID, models.JobStatusFailed,
		store.WithErrorMessage(models.CancelledMessage))
	if errors.Is(err, store.ErrJobFinished) {
		return ErrAlreadyFinished
	}
	if err != nil {
		return err
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, s.statusTTL)
	metrics.JobsFinishedTotal.WithLabelValues("cancelled").Inc()
	return nil
}

// run advances a job through the step pipeline. It recovers from panics and
// always leaves the job in a terminal status unless a cancel got there first.
func (s *Service) run(jobID, projectID uuid.UUID, startedAt time.Time) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in reel job", "error", r, "job_id", jobID)
			s.markFailed(ctx, jobID, startedAt, fmt.Sprintf("panic: %v", r))
		}
	}()

	total := len(s.steps)
	for i, step := range s.steps {
		// Cancellation check: the cancel path writes the record rather than
		// signalling this goroutine, so re-read authoritative status before
		// spending compute on the next step.
		status, err := s.store.GetReelJobStatus(ctx, jobID)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("reel job deleted mid-run, stopping", "job_id", jobID)
			return
		}
		if err != nil {
			s.markFailed(ctx, jobID, startedAt, fmt.Sprintf("reading job status: %v", err))
			return
		}
		if models.IsTerminalStatus(status) {
			slog.Info("reel job finished externally, stopping", "job_id", jobID, "status", status)
			return
		}

		last := i == total-1
		if last {
			if done := s.compose(ctx, jobID, projectID, startedAt); !done {
				return
			}
			continue
		}

		stepCtx, cancel := context.WithTimeout(ctx, s.stepTO)
		moments, err := s.compute.DetectMoments(stepCtx, compute.StepRequest{
			JobID:     jobID,
			ProjectID: projectID,
			Step:      step,
		})
		cancel()
		if err != nil {
			s.markFailed(ctx, jobID, startedAt, fmt.Sprintf("step %s: %v", step, err))
			return
		}

		progress := stepProgress(i, total)
		err = s.store.UpdateReelJobProgress(ctx, jobID, progress, moments)
		if errors.Is(err, store.ErrJobFinished) || errors.Is(err, store.ErrNotFound) {
			// A cancel won the race between the status check and this write.
			// The terminal status stands; write nothing further.
			slog.Info("reel job progress write lost to terminal status", "job_id", jobID, "step", step)
			return
		}
		if err != nil {
			s.markFailed(ctx, jobID, startedAt, fmt.Sprintf("recording step %s: %v", step, err))
			return
		}

		metrics.MomentsDetectedTotal.WithLabelValues(step).Add(float64(len(moments)))
		_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusProcessing, s.statusTTL)
		slog.Info("reel step complete",
			"job_id", jobID, "step", step, "progress", progress, "moments", len(moments))
	}
}

// compose runs the final step: cut the reel, publish its URL onto the owning
// project, and complete the job. Returns false when the run must stop early.
func (s *Service) compose(ctx context.Context, jobID, projectID uuid.UUID, startedAt time.Time) bool {
	job, err := s.store.GetLatestReelJob(ctx, projectID)
	if err != nil {
		s.markFailed(ctx, jobID, startedAt, fmt.Sprintf("loading moments for composition: %v", err))
		return false
	}
	if job.ID != jobID {
		// A newer job exists for the project, so this record must already be
		// terminal. Write nothing further.
		slog.Warn("reel job superseded before composition", "job_id", jobID)
		return false
	}

	stepCtx, cancel := context.WithTimeout(ctx, s.stepTO)
	reelURL, err := s.compute.ComposeReel(stepCtx, compute.ComposeRequest{
		JobID:     jobID,
		ProjectID: projectID,
		Moments:   job.DetectedMoments,
	})
	cancel()
	if err != nil {
		s.markFailed(ctx, jobID, startedAt, fmt.Sprintf("composing reel: %v", err))
		return false
	}

	err = s.store.FinishReelJob(ctx, jobID, models.JobStatusCompleted)
	if errors.Is(err, store.ErrJobFinished) || errors.Is(err, store.ErrNotFound) {
		slog.Info("reel job completion lost to terminal status", "job_id", jobID)
		return false
	}
	if err != nil {
		s.markFailed(ctx, jobID, startedAt, fmt.Sprintf("completing job: %v", err))
		return false
	}

	// The reel URL is published only after the completed status is durable.
	if err := s.store.SetProjectReelURL(ctx, projectID, reelURL); err != nil {
		slog.Error("publishing reel url failed", "job_id", jobID, "project_id", projectID, "error", err)
	}

	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, s.statusTTL)
	metrics.JobsFinishedTotal.WithLabelValues("completed").Inc()
	metrics.JobDurationSeconds.Observe(time.Since(startedAt).Seconds())
	slog.Info("reel job completed", "job_id", jobID, "reel_url", reelURL)
	return true
}

// markFailed converts a step failure into a terminal write. If a cancel or
// another terminal write got there first, the existing status stands.
func (s *Service) markFailed(ctx context.Context, jobID uuid.UUID, startedAt time.Time, msg string) {
	err := s.store.FinishReelJob(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(msg))
	if errors.Is(err, store.ErrJobFinished) || errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Error("marking reel job failed", "job_id", jobID, "error", err)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, s.statusTTL)
	metrics.JobsFinishedTotal.WithLabelValues("failed").Inc()
	metrics.JobDurationSeconds.Observe(time.Since(startedAt).Seconds())
	slog.Warn("reel job failed", "job_id", jobID, "error_message", msg)
}

// stepProgress maps a completed step index onto 0-100.
func stepProgress(i, total int) int {
	return int(math.Round(float64(i+1) / float64(total) * 100))
}
