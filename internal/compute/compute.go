// Package compute talks to the external AI compute service that performs
// moment detection and reel composition, and gates job creation on its
// liveness. Cold-start providers that scale to zero are modeled as "sleeping"
// rather than down, because they wake on demand.
package compute

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

// Sentinel errors for compute client failures.
var (
	ErrComputeUnreachable = errors.New("compute service unreachable")
	ErrComputeTimeout     = errors.New("compute request timeout")
	ErrComputeUnhealthy   = errors.New("compute service unhealthy")
	ErrComputeRejected    = errors.New("compute service rejected request")
)

// Status is the health gate's verdict on the compute service. It is held
// client-side only and never persisted. Kept distinct from job status and
// readiness state on purpose: each is observed and rendered independently.
type Status string

const (
	StatusChecking  Status = "checking"
	StatusAvailable Status = "available"
	StatusSleeping  Status = "sleeping"
	StatusError     Status = "error"
)

// StepRequest asks the compute service to run one named processing step for
// a job.
type StepRequest struct {
	JobID     uuid.UUID `json:"job_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Step      string    `json:"step"`
}

// ComposeRequest asks the compute service to cut the final reel from the
// accumulated moments.
type ComposeRequest struct {
	JobID     uuid.UUID       `json:"job_id"`
	ProjectID uuid.UUID       `json:"project_id"`
	Moments   []models.Moment `json:"moments"`
}

// Client is the interface for the moment-detection backend. Never call the
// remote service directly — always inject this interface.
type Client interface {
	// DetectMoments runs one processing step and returns the moments it found.
	DetectMoments(ctx context.Context, req StepRequest) ([]models.Moment, error)
	// ComposeReel renders the final highlight reel and returns its URL.
	ComposeReel(ctx context.Context, req ComposeRequest) (string, error)
	// Health checks service liveness. nil means the service answered 200.
	Health(ctx context.Context) error
	// Name returns the client identifier (e.g. "http", "simulated").
	Name() string
}
