// Package readiness implements a bounded, backoff-based check for whether a
// remote, asynchronously-produced resource is fetchable yet. It is the shared
// primitive behind "has the thumbnail been generated" and "has the upload
// finished remote transcoding" — callers differ only in how they derive the
// URL and which content type counts as ready.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// State of one polled resource. Ephemeral, never persisted.
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateProcessing State = "processing"
	StateError      State = "error"
	StateNotFound   State = "not-found"
)

var (
	// ErrAttemptsExhausted is returned when the resource never became ready
	// within the attempt budget.
	ErrAttemptsExhausted = errors.New("readiness attempts exhausted")

	// ErrResourceFailed is returned when a check fails in a way that retrying
	// cannot fix (an error response other than 404).
	ErrResourceFailed = errors.New("resource readiness check failed")
)

const backoffCap = 30 * time.Second

// Options tune a Probe. Zero values fall back to the package defaults
// (10 attempts, 2s initial delay, 30s delay cap, 5s per-attempt timeout).
type Options struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	HTTPClient     *http.Client
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 2 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = backoffCap
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	return o
}

// Probe polls a derived URL until the resource behind it is fetchable.
type Probe struct {
	deriveURL       func(resourceID string) string
	wantContentType string // prefix match; empty accepts any content type
	opts            Options
}

// New creates a probe with a custom URL derivation.
func New(deriveURL func(resourceID string) string, wantContentType string, opts Options) *Probe {
	return &Probe{
		deriveURL:       deriveURL,
		wantContentType: wantContentType,
		opts:            opts.withDefaults(),
	}
}

// NewThumbnailProbe checks whether the background-generated thumbnail for an
// asset has landed on the CDN.
func NewThumbnailProbe(cdnBaseURL string, opts Options) *Probe {
	return New(func(assetID string) string {
		return fmt.Sprintf("%s/thumbnails/%s.jpg", cdnBaseURL, assetID)
	}, "image/", opts)
}

// NewPlaybackProbe checks whether an uploaded video has finished remote
// transcoding and its playback manifest is fetchable.
func NewPlaybackProbe(cdnBaseURL string, opts Options) *Probe {
	return New(func(assetID string) string {
		return fmt.Sprintf("%s/playback/%s/manifest.m3u8", cdnBaseURL, assetID)
	}, "", opts)
}

// Result summarizes a finished wait.
type Result struct {
	State    State
	Attempts int
	Elapsed  time.Duration
}

// Check performs a single readiness attempt. A 404 reports not-found and a
// per-attempt timeout reports processing; neither is an error here — the
// resource is still being produced upstream.
func (p *Probe) Check(ctx context.Context, resourceID string) (State, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.opts.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodHead, p.deriveURL(resourceID), nil)
	if err != nil {
		return StateError, fmt.Errorf("building readiness request: %w", err)
	}

	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return StateProcessing, nil
		}
		return StateError, fmt.Errorf("%w: %v", ErrResourceFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if p.wantContentType != "" &&
			!strings.HasPrefix(resp.Header.Get("Content-Type"), p.wantContentType) {
			// Resource exists but not yet in its final form (e.g. a
			// placeholder served while transcoding runs).
			return StateProcessing, nil
		}
		return StateReady, nil
	case resp.StatusCode == http.StatusNotFound:
		return StateNotFound, nil
	default:
		return StateError, fmt.Errorf("%w: status %d", ErrResourceFailed, resp.StatusCode)
	}
}

// WaitUntilReady polls Check with multiplicative backoff until the resource is
// ready, a non-retryable error occurs, the attempt budget runs out, or ctx is
// cancelled. The delay starts at InitialDelay and grows by 1.5x after every
// non-terminal attempt, capped at MaxDelay.
func (p *Probe) WaitUntilReady(ctx context.Context, resourceID string) (Result, error) {
	start := time.Now()
	delay := p.opts.InitialDelay

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		state, err := p.Check(ctx, resourceID)
		res := Result{State: state, Attempts: attempt, Elapsed: time.Since(start)}

		switch state {
		case StateReady:
			return res, nil
		case StateError:
			return res, err
		}

		if attempt == p.opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Result{State: StateError, Attempts: attempt, Elapsed: time.Since(start)}, ctx.Err()
		case <-time.After(delay):
		}
		delay = nextDelay(delay, p.opts.MaxDelay)
	}

	return Result{State: StateError, Attempts: p.opts.MaxAttempts, Elapsed: time.Since(start)},
		ErrAttemptsExhausted
}

func nextDelay(d, max time.Duration) time.Duration {
	d += d / 2
	if d > max {
		d = max
	}
	return d
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
