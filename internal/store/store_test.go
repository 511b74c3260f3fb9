package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rudrakspatel/reelforge/internal/store"
	"github.com/rudrakspatel/reelforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("reelforge_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultAccountID returns the UUID of the seeded default account.
func defaultAccountID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	account, err := s.GetDefaultAccount(context.Background())
	require.NoError(t, err)
	return account.ID
}

// createProject inserts a project under the given account.
func createProject(t *testing.T, s store.Store, accountID uuid.UUID) *models.Project {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &models.Project{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      "project-" + uuid.NewString()[:8],
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

// createJob inserts a processing reel job for the project.
func createJob(t *testing.T, s store.Store, projectID uuid.UUID) *models.ReelJob {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &models.ReelJob{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    uuid.New(),
		Status:    models.JobStatusProcessing,
		Progress:  0,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateReelJob(context.Background(), job))
	return job
}

// --- Account Tests ---

func TestGetDefaultAccount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	account, err := s.GetDefaultAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", account.Name)
	assert.NotEqual(t, uuid.Nil, account.ID)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "rk_abcd1",
		Scopes:    []string{"host", "admin"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "rk_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
	assert.Equal(t, []string{"host", "admin"}, keys[0].Scopes)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      "revoke-me",
		KeyHash:   "hash",
		KeyPrefix: "rk_gone1",
		Scopes:    []string{"host"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, accountID))

	// Revoked keys no longer resolve by prefix.
	keys, err := s.GetAPIKeyByPrefix(ctx, "rk_gone1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Second revoke is a not-found.
	assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, accountID), store.ErrNotFound)
}

// --- Project Tests ---

func TestProject_CreateGetAndPublishReelURL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)

	p := createProject(t, s, accountID)

	got, err := s.GetProject(ctx, p.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Nil(t, got.HighlightReelURL)

	// Wrong account never sees the project.
	_, err = s.GetProject(ctx, p.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SetProjectReelURL(ctx, p.ID, "https://cdn.reelforge.dev/reels/final.mp4"))

	got, err = s.GetProject(ctx, p.ID, accountID)
	require.NoError(t, err)
	require.NotNil(t, got.HighlightReelURL)
	assert.Equal(t, "https://cdn.reelforge.dev/reels/final.mp4", *got.HighlightReelURL)
}

// --- Reel Job Tests ---

func TestReelJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)

	job := createJob(t, s, p.ID)

	got, err := s.GetReelJob(ctx, job.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Empty(t, got.DetectedMoments)
	assert.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	// Jobs are scoped through their project's account.
	_, err = s.GetReelJob(ctx, job.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	status, err := s.GetReelJobStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, status)
}

func TestReelJob_OneActivePerProject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)

	first := createJob(t, s, p.ID)

	// A second active job is refused by the database, not by a racy read.
	now := time.Now().UTC()
	second := &models.ReelJob{
		ID:        uuid.New(),
		ProjectID: p.ID,
		UserID:    uuid.New(),
		Status:    models.JobStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	assert.ErrorIs(t, s.CreateReelJob(ctx, second), store.ErrActiveJobExists)

	// Once the first job is terminal, a new job is allowed.
	require.NoError(t, s.FinishReelJob(ctx, first.ID, models.JobStatusCompleted))
	require.NoError(t, s.CreateReelJob(ctx, second))
}

func TestReelJob_ProgressIsMonotonic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)
	job := createJob(t, s, p.ID)

	moments := []models.Moment{
		{Category: models.MomentCategoryCeremony, Subtype: "vows", TimestampSeconds: 1830, DurationSeconds: 45, Confidence: 0.97},
	}
	require.NoError(t, s.UpdateReelJobProgress(ctx, job.ID, 40, moments))

	// Lower progress is rejected and changes nothing.
	err := s.UpdateReelJobProgress(ctx, job.ID, 20, nil)
	assert.ErrorIs(t, err, store.ErrProgressRegression)

	got, err := s.GetReelJob(ctx, job.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)

	// Equal progress is allowed (idempotent retry of a step write).
	require.NoError(t, s.UpdateReelJobProgress(ctx, job.ID, 40, nil))

	// Out-of-range values never reach the database.
	assert.Error(t, s.UpdateReelJobProgress(ctx, job.ID, 101, nil))
	assert.Error(t, s.UpdateReelJobProgress(ctx, job.ID, -1, nil))
}

func TestReelJob_MomentsAppendAcrossSteps(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)
	job := createJob(t, s, p.ID)

	first := []models.Moment{{Category: models.MomentCategoryCeremony, TimestampSeconds: 100, DurationSeconds: 30, Confidence: 0.9}}
	second := []models.Moment{
		{Category: models.MomentCategoryEmotional, TimestampSeconds: 200, DurationSeconds: 20, Confidence: 0.8},
		{Category: models.MomentCategoryGroup, TimestampSeconds: 300, DurationSeconds: 15, Confidence: 0.7},
	}

	require.NoError(t, s.UpdateReelJobProgress(ctx, job.ID, 20, first))
	require.NoError(t, s.UpdateReelJobProgress(ctx, job.ID, 40, second))

	got, err := s.GetReelJob(ctx, job.ID, accountID)
	require.NoError(t, err)
	require.Len(t, got.DetectedMoments, 3)
	assert.Equal(t, models.MomentCategoryCeremony, got.DetectedMoments[0].Category)
	assert.Equal(t, models.MomentCategoryGroup, got.DetectedMoments[2].Category)
}

func TestReelJob_TerminalStatusIsImmutable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)
	job := createJob(t, s, p.ID)

	require.NoError(t, s.FinishReelJob(ctx, job.ID, models.JobStatusCompleted))

	// Finishing again, with either status, loses.
	assert.ErrorIs(t, s.FinishReelJob(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorMessage("too late")), store.ErrJobFinished)
	assert.ErrorIs(t, s.FinishReelJob(ctx, job.ID, models.JobStatusCompleted), store.ErrJobFinished)

	// Progress writes against a terminal job lose too.
	assert.ErrorIs(t, s.UpdateReelJobProgress(ctx, job.ID, 90, nil), store.ErrJobFinished)

	got, err := s.GetReelJob(ctx, job.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Nil(t, got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
}

func TestReelJob_CompletedForcesProgress100(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)
	job := createJob(t, s, p.ID)

	require.NoError(t, s.UpdateReelJobProgress(ctx, job.ID, 80, nil))
	require.NoError(t, s.FinishReelJob(ctx, job.ID, models.JobStatusCompleted))

	got, err := s.GetReelJob(ctx, job.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
}

func TestReelJob_CancelWritesReservedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)
	job := createJob(t, s, p.ID)

	require.NoError(t, s.UpdateReelJobProgress(ctx, job.ID, 60, nil))
	require.NoError(t, s.FinishReelJob(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorMessage(models.CancelledMessage)))

	got, err := s.GetReelJob(ctx, job.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, models.CancelledMessage, *got.ErrorMessage)
	assert.True(t, got.Cancelled())

	// A failed job keeps the progress it had reached.
	assert.Equal(t, 60, got.Progress)
}

func TestReelJob_GetLatestPicksNewest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)
	p := createProject(t, s, accountID)

	old := createJob(t, s, p.ID)
	require.NoError(t, s.FinishReelJob(ctx, old.ID, models.JobStatusFailed,
		store.WithErrorMessage("compute step timed out")))

	later := time.Now().UTC().Add(time.Second).Truncate(time.Microsecond)
	newest := &models.ReelJob{
		ID:        uuid.New(),
		ProjectID: p.ID,
		UserID:    uuid.New(),
		Status:    models.JobStatusProcessing,
		CreatedAt: later,
		UpdatedAt: later,
	}
	require.NoError(t, s.CreateReelJob(ctx, newest))

	got, err := s.GetLatestReelJob(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)
}

func TestReelJob_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	accountID := defaultAccountID(t, s)

	_, err := s.GetReelJob(ctx, uuid.New(), accountID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetLatestReelJob(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.FinishReelJob(ctx, uuid.New(), models.JobStatusFailed), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateReelJobProgress(ctx, uuid.New(), 10, nil), store.ErrNotFound)
}
