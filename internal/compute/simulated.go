package compute

import (
	"context"
	"fmt"
	"time"

	"github.com/rudrakspatel/reelforge/pkg/models"
)

// SimulatedClient satisfies Client without a remote service, for local
// development and demos. Each step yields a canned set of plausible moments
// after a short delay.
type SimulatedClient struct {
	// StepDelay emulates remote work per step. Zero means no delay.
	StepDelay time.Duration
}

func NewSimulatedClient(stepDelay time.Duration) *SimulatedClient {
	return &SimulatedClient{StepDelay: stepDelay}
}

func (c *SimulatedClient) Name() string { return "simulated" }

var simulatedMoments = map[string][]models.Moment{
	"scene-detection": {
		{Category: models.MomentCategoryCeremony, Subtype: "vow_exchange", TimestampSeconds: 742, DurationSeconds: 18, Confidence: 0.93, Description: "Vow exchange at the altar"},
		{Category: models.MomentCategoryGroup, Subtype: "group_photo", TimestampSeconds: 2210, DurationSeconds: 6, Confidence: 0.81, Description: "Full group gathered on the lawn"},
	},
	"audio-analysis": {
		{Category: models.MomentCategoryReception, Subtype: "first_dance", TimestampSeconds: 4115, DurationSeconds: 24, Confidence: 0.88, Description: "First dance, crowd cheering"},
		{Category: models.MomentCategoryReception, Subtype: "toast", TimestampSeconds: 3380, DurationSeconds: 31, Confidence: 0.76, Description: "Best man's toast with laughter peak"},
	},
	"emotion-detection": {
		{Category: models.MomentCategoryEmotional, Subtype: "tears_of_joy", TimestampSeconds: 790, DurationSeconds: 9, Confidence: 0.84, Description: "Front row reaction during the vows"},
	},
}

func (c *SimulatedClient) DetectMoments(ctx context.Context, req StepRequest) ([]models.Moment, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	moments, ok := simulatedMoments[req.Step]
	if !ok {
		return []models.Moment{}, nil
	}
	out := make([]models.Moment, len(moments))
	copy(out, moments)
	return out, nil
}

func (c *SimulatedClient) ComposeReel(ctx context.Context, req ComposeRequest) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://cdn.reelforge.dev/reels/%s.mp4", req.JobID), nil
}

func (c *SimulatedClient) Health(_ context.Context) error { return nil }

func (c *SimulatedClient) wait(ctx context.Context) error {
	if c.StepDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(c.StepDelay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrComputeTimeout, ctx.Err())
	}
}

var _ Client = (*SimulatedClient)(nil)
