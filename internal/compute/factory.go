package compute

import (
	"fmt"
	"time"

	"github.com/rudrakspatel/reelforge/internal/config"
)

// NewClient constructs the appropriate compute client based on config.
// Called once at server startup.
func NewClient(cfg config.ComputeConfig) (Client, error) {
	switch cfg.Mode {
	case "http":
		return NewHTTPClient(cfg.BaseURL, cfg.StepTimeout), nil
	case "simulated":
		return NewSimulatedClient(500 * time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown compute mode %q: must be one of http, simulated", cfg.Mode)
	}
}
