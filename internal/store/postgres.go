package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

// activeJobIndex is the partial unique index that enforces at most one
// non-terminal job per project. Violations of it surface as ErrActiveJobExists.
const activeJobIndex = "ux_reel_jobs_one_active_per_project"

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Accounts ---

func (s *PostgresStore) GetDefaultAccount(ctx context.Context) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM accounts WHERE name = 'default' LIMIT 1`,
	).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default account: %w", err)
	}
	return &a, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.AccountID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, account_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.AccountID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, accountID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE account_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.AccountID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND account_id = $2 AND deleted_at IS NULL`, id, accountID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, account_id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		project.ID, project.AccountID, project.Name, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, name, highlight_reel_url, created_at, updated_at
		 FROM projects WHERE id = $1 AND account_id = $2`, id, accountID,
	).Scan(&p.ID, &p.AccountID, &p.Name, &p.HighlightReelURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SetProjectReelURL(ctx context.Context, id uuid.UUID, reelURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET highlight_reel_url = $2, updated_at = NOW() WHERE id = $1`, id, reelURL)
	if err != nil {
		return fmt.Errorf("set project reel url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Reel Jobs ---

func (s *PostgresStore) CreateReelJob(ctx context.Context, job *models.ReelJob) error {
	moments, err := marshalMoments(job.DetectedMoments)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reel_jobs (id, project_id, user_id, status, progress, detected_moments, started_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.ProjectID, job.UserID, job.Status, job.Progress, moments,
		job.StartedAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == activeJobIndex {
				return ErrActiveJobExists
			}
			return ErrDuplicateKey
		}
		return fmt.Errorf("create reel job: %w", err)
	}
	return nil
}

const reelJobColumns = `id, project_id, user_id, status, progress, detected_moments,
	 error_message, started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) GetReelJob(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.ReelJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT j.id, j.project_id, j.user_id, j.status, j.progress, j.detected_moments,
		        j.error_message, j.started_at, j.completed_at, j.created_at, j.updated_at
		 FROM reel_jobs j
		 JOIN projects p ON p.id = j.project_id
		 WHERE j.id = $1 AND p.account_id = $2`, id, accountID)
	job, err := scanReelJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reel job: %w", err)
	}
	return job, nil
}

// GetReelJobStatus reads just the authoritative status. The orchestrator
// calls this before every step to observe a cancellation.
func (s *PostgresStore) GetReelJobStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM reel_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get reel job status: %w", err)
	}
	return status, nil
}

func (s *PostgresStore) GetLatestReelJob(ctx context.Context, projectID uuid.UUID) (*models.ReelJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reelJobColumns+`
		 FROM reel_jobs WHERE project_id = $1
		 ORDER BY created_at DESC LIMIT 1`, projectID)
	job, err := scanReelJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest reel job: %w", err)
	}
	return job, nil
}

// UpdateReelJobProgress appends moments and raises progress in one guarded
// statement. The WHERE clause is the whole consistency story: a racing cancel
// flips status away from processing, so a late orchestrator write matches zero
// rows instead of resurrecting the job.
func (s *PostgresStore) UpdateReelJobProgress(ctx context.Context, id uuid.UUID, progress int, moments []models.Moment) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress %d out of range [0,100]", progress)
	}
	appended, err := marshalMoments(moments)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE reel_jobs
		 SET progress = $2,
		     detected_moments = detected_moments || $3::jsonb,
		     updated_at = NOW()
		 WHERE id = $1 AND status = $4 AND progress <= $2`,
		id, progress, appended, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("update reel job progress: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No row matched: classify why.
	var status string
	var current int
	err = s.pool.QueryRow(ctx, `SELECT status, progress FROM reel_jobs WHERE id = $1`, id).
		Scan(&status, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify rejected progress write: %w", err)
	}
	if models.IsTerminalStatus(status) {
		return ErrJobFinished
	}
	if current > progress {
		return ErrProgressRegression
	}
	return fmt.Errorf("progress write rejected for job in status %q", status)
}

// FinishReelJob writes a terminal status. It only matches jobs that are still
// non-terminal, which makes terminal statuses immutable: whichever of the
// orchestrator and a user cancel lands first wins, and the loser gets
// ErrJobFinished.
func (s *PostgresStore) FinishReelJob(ctx context.Context, id uuid.UUID, status string, opts ...JobFinishOption) error {
	if !models.IsTerminalStatus(status) {
		return fmt.Errorf("finish reel job: %q is not a terminal status", status)
	}
	params := &JobFinishParams{}
	for _, opt := range opts {
		opt(params)
	}

	now := time.Now().UTC()
	query := `UPDATE reel_jobs SET status = $2, completed_at = $3, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusCompleted {
		query += fmt.Sprintf(", progress = $%d", argIdx)
		args = append(args, 100)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	query += fmt.Sprintf(" WHERE id = $1 AND status IN ($%d, $%d)", argIdx, argIdx+1)
	args = append(args, models.JobStatusPending, models.JobStatusProcessing)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finish reel job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reel_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("classify rejected finish write: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrJobFinished
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReelJob(row rowScanner) (*models.ReelJob, error) {
	var j models.ReelJob
	var moments []byte
	if err := row.Scan(&j.ID, &j.ProjectID, &j.UserID, &j.Status, &j.Progress, &moments,
		&j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(moments, &j.DetectedMoments); err != nil {
		return nil, fmt.Errorf("decode detected moments: %w", err)
	}
	if j.DetectedMoments == nil {
		j.DetectedMoments = []models.Moment{}
	}
	return &j, nil
}

func marshalMoments(moments []models.Moment) ([]byte, error) {
	if len(moments) == 0 {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(moments)
	if err != nil {
		return nil, fmt.Errorf("encode moments: %w", err)
	}
	return b, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
