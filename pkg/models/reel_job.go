package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// CancelledMessage is the reserved error_message written by a user cancel.
// The UI renders jobs failed with this message as "Cancelled", not "Failed".
const CancelledMessage = "Cancelled by user"

// IsTerminalStatus reports whether a job status is final. Terminal statuses
// are never overwritten once written.
func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// ReelJob tracks one highlight-reel generation request. The API returns a
// job id on POST /api/v1/projects/{id}/reel; the client polls until status
// is completed or failed. Progress is monotonically non-decreasing while the
// job is processing, and DetectedMoments is append-only.
type ReelJob struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	ProjectID       uuid.UUID  `db:"project_id"       json:"project_id"`
	UserID          uuid.UUID  `db:"user_id"          json:"user_id"`
	Status          string     `db:"status"           json:"status"`
	Progress        int        `db:"progress"         json:"progress"`
	DetectedMoments []Moment   `db:"detected_moments" json:"detected_moments"`
	ErrorMessage    *string    `db:"error_message"    json:"error_message,omitempty"`
	StartedAt       *time.Time `db:"started_at"       json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at"     json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *ReelJob) Terminal() bool {
	return IsTerminalStatus(j.Status)
}

// Cancelled reports whether the job was failed by an explicit user cancel
// rather than a processing error.
func (j *ReelJob) Cancelled() bool {
	return j.Status == JobStatusFailed && j.ErrorMessage != nil && *j.ErrorMessage == CancelledMessage
}
