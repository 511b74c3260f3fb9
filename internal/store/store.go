package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key violation")

	// ErrActiveJobExists is returned by CreateReelJob when the project already
	// has a job in a non-terminal status.
	ErrActiveJobExists = errors.New("project already has an active reel job")

	// ErrJobFinished is returned by writes against a job that has already
	// reached a terminal status. Terminal statuses are immutable.
	ErrJobFinished = errors.New("reel job already finished")

	// ErrProgressRegression is returned when a progress write would lower a
	// processing job's progress.
	ErrProgressRegression = errors.New("reel job progress may not decrease")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultAccount(ctx context.Context) (*models.Account, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, accountID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error

	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Project, error)
	SetProjectReelURL(ctx context.Context, id uuid.UUID, reelURL string) error

	CreateReelJob(ctx context.Context, job *models.ReelJob) error
	GetReelJob(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.ReelJob, error)
	GetReelJobStatus(ctx context.Context, id uuid.UUID) (string, error)
	GetLatestReelJob(ctx context.Context, projectID uuid.UUID) (*models.ReelJob, error)
	UpdateReelJobProgress(ctx context.Context, id uuid.UUID, progress int, moments []models.Moment) error
	FinishReelJob(ctx context.Context, id uuid.UUID, status string, opts ...JobFinishOption) error
}

// JobFinishParams collects the optional fields of a terminal job write.
// Exported so alternative Store implementations can apply JobFinishOptions.
type JobFinishParams struct {
	ErrorMessage *string
}

type JobFinishOption func(*JobFinishParams)

func WithErrorMessage(msg string) JobFinishOption {
	return func(p *JobFinishParams) {
		p.ErrorMessage = &msg
	}
}
