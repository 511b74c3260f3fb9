// Package monitor implements the requester-side controller for reel jobs:
// it starts jobs, polls them until a terminal status appears, surfaces
// cancellation, and folds compute-service health into one observable state.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/internal/compute"
	"github.com/rudrakspatel/reelforge/pkg/client"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

// State of the monitor's job tracking, per project.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateTracking State = "tracking"
	StateTerminal State = "terminal"
)

var (
	// ErrServiceSleeping is returned by Start when the last known compute
	// health is sleeping. Starting a job then would only create a doomed
	// record; the caller should retry in a minute or two.
	ErrServiceSleeping = errors.New("compute service is sleeping")

	// ErrNotTracking is returned by Cancel when no job is being tracked.
	ErrNotTracking = errors.New("no reel job is being tracked")
)

// JobAPI is the server surface the monitor polls. *client.Client implements it.
type JobAPI interface {
	StartReel(ctx context.Context, projectID, userID uuid.UUID) (*models.ReelJob, error)
	LatestReel(ctx context.Context, projectID uuid.UUID) (*models.ReelJob, error)
	CancelReel(ctx context.Context, jobID uuid.UUID) error
}

// HealthProber reports compute service liveness.
type HealthProber interface {
	Probe(ctx context.Context) compute.Status
}

// Snapshot is one observable state of the monitor. Job state, compute health,
// and readiness remain separate concerns; a UI renders "no job", "service
// sleeping", and "job failed" differently.
type Snapshot struct {
	State  State
	Health compute.Status
	Job    *models.ReelJob
}

// Options tune the monitor. Zero values use the production defaults of a 2s
// poll interval and a 30s health re-probe after a sleeping verdict.
type Options struct {
	PollInterval    time.Duration
	SleepRetryAfter time.Duration
}

// Monitor tracks at most one job at a time. Safe for concurrent use.
type Monitor struct {
	api        JobAPI
	prober     HealthProber
	interval   time.Duration
	sleepRetry time.Duration

	mu          sync.Mutex
	state       State
	health      compute.Status
	job         *models.ReelJob
	stopPolling context.CancelFunc
	retryTimer  *time.Timer
	closed      bool

	updates chan Snapshot
}

// New creates a monitor. Callers typically run CheckHealth once on startup.
func New(api JobAPI, prober HealthProber, opts Options) *Monitor {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	sleepRetry := opts.SleepRetryAfter
	if sleepRetry <= 0 {
		sleepRetry = 30 * time.Second
	}
	return &Monitor{
		api:        api,
		prober:     prober,
		interval:   interval,
		sleepRetry: sleepRetry,
		state:      StateIdle,
		health:     compute.StatusChecking,
		updates:    make(chan Snapshot, 16),
	}
}

// Updates delivers a snapshot after every observable change. Slow consumers
// miss intermediate snapshots rather than blocking the poll loop.
func (m *Monitor) Updates() <-chan Snapshot {
	return m.updates
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// CheckHealth probes the compute service now. After a sleeping verdict it
// schedules one automatic re-probe so a waking service is noticed without
// user action.
func (m *Monitor) CheckHealth(ctx context.Context) compute.Status {
	status := m.prober.Probe(ctx)

	m.mu.Lock()
	m.health = status
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if status == compute.StatusSleeping && !m.closed {
		m.retryTimer = time.AfterFunc(m.sleepRetry, func() {
			m.CheckHealth(context.Background())
		})
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return status
}

// Start creates a new job for the project and begins polling it. It refuses
// to start while the last known compute health is sleeping.
func (m *Monitor) Start(ctx context.Context, projectID, userID uuid.UUID) error {
	m.mu.Lock()
	if m.health == compute.StatusSleeping {
		m.mu.Unlock()
		return ErrServiceSleeping
	}
	if m.state == StateStarting || m.state == StateTracking {
		m.mu.Unlock()
		return errors.New("a reel job is already being tracked")
	}
	m.state = StateStarting
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)

	job, err := m.api.StartReel(ctx, projectID, userID)
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		snap = m.snapshotLocked()
		m.mu.Unlock()
		m.emit(snap)
		return err
	}

	m.track(ctx, job)
	return nil
}

// Attach begins tracking the project's most recent job without creating one.
func (m *Monitor) Attach(ctx context.Context, projectID uuid.UUID) error {
	job, err := m.api.LatestReel(ctx, projectID)
	if err != nil {
		return err
	}
	m.track(ctx, job)
	return nil
}

// Cancel stops the tracked job. Polling stops immediately client-side; the
// orchestrator notices the terminal status at its next step boundary.
func (m *Monitor) Cancel(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateTracking || m.job == nil {
		m.mu.Unlock()
		return ErrNotTracking
	}
	jobID := m.job.ID
	if m.stopPolling != nil {
		m.stopPolling()
		m.stopPolling = nil
	}
	cancelled := *m.job
	cancelled.Status = models.JobStatusFailed
	msg := models.CancelledMessage
	cancelled.ErrorMessage = &msg
	m.job = &cancelled
	m.state = StateTerminal
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)

	return m.api.CancelReel(ctx, jobID)
}

// Close stops polling and any pending health re-probe.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.stopPolling != nil {
		m.stopPolling()
		m.stopPolling = nil
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func (m *Monitor) track(ctx context.Context, job *models.ReelJob) {
	m.mu.Lock()
	m.job = job
	if job.Terminal() {
		m.state = StateTerminal
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.emit(snap)
		return
	}
	m.state = StateTracking
	pollCtx, cancel := context.WithCancel(ctx)
	m.stopPolling = cancel
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)

	go m.poll(pollCtx, job.ProjectID)
}

// poll replaces local state with the fetched record every tick until a
// terminal status is observed, the job disappears, or ctx is cancelled. A
// transient fetch error is a no-op for that tick: last known state is kept
// and polling continues.
func (m *Monitor) poll(ctx context.Context, projectID uuid.UUID) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err := m.api.LatestReel(ctx, projectID)
		if errors.Is(err, client.ErrNotFound) {
			// Job deleted out of band.
			m.mu.Lock()
			m.job = nil
			m.state = StateIdle
			if m.stopPolling != nil {
				m.stopPolling()
				m.stopPolling = nil
			}
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.emit(snap)
			return
		}
		if err != nil {
			continue
		}

		m.mu.Lock()
		if m.state != StateTracking {
			// A cancel raced this fetch; its terminal view wins.
			m.mu.Unlock()
			return
		}
		m.job = job
		done := job.Terminal()
		if done {
			m.state = StateTerminal
			if m.stopPolling != nil {
				m.stopPolling()
				m.stopPolling = nil
			}
		}
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.emit(snap)

		if done {
			return
		}
	}
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, Health: m.health, Job: m.job}
}

func (m *Monitor) emit(snap Snapshot) {
	select {
	case m.updates <- snap:
	default:
	}
}
