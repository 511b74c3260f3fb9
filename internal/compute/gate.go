package compute

import (
	"context"
	"errors"
	"time"

	"github.com/rudrakspatel/reelforge/internal/metrics"
)

// Gate is the pre-flight liveness check in front of job creation. Probe never
// hangs past the configured timeout.
//
// Any failure to get a 200 — including an unreachable host — is reported as
// sleeping, because the compute provider scales to zero and wakes on demand.
// Callers own their retry cadence; the job monitor re-probes 30s after a
// sleeping verdict.
type Gate struct {
	client  Client
	timeout time.Duration
}

func NewGate(client Client, timeout time.Duration) *Gate {
	return &Gate{client: client, timeout: timeout}
}

// Probe checks compute service liveness. Safe to call repeatedly.
func (g *Gate) Probe(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.client.Health(probeCtx)
	status := classifyHealth(err)
	metrics.ComputeHealthProbesTotal.WithLabelValues(string(status)).Inc()
	return status
}

func classifyHealth(err error) Status {
	switch {
	case err == nil:
		return StatusAvailable
	case isSleepable(err):
		return StatusSleeping
	default:
		return StatusError
	}
}

// isSleepable reports whether a health failure is consistent with a cold
// provider: no answer, a late answer, or a non-200 from a half-awake service.
func isSleepable(err error) bool {
	for _, target := range []error{ErrComputeUnreachable, ErrComputeTimeout, ErrComputeUnhealthy} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
