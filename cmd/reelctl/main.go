// Package main provides reelctl, the command line client for the ReelForge API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rudrakspatel/reelforge/internal/compute"
	"github.com/rudrakspatel/reelforge/pkg/client"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reelctl",
	Short: "ReelForge command line client",
	Long:  "reelctl starts, watches, and cancels highlight reel jobs against a ReelForge server, and checks compute and media readiness.",
}

var (
	flagServerURL string
	flagAPIKey    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "ReelForge API base URL (or REELFORGE_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (or REELFORGE_API_KEY)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newAPIClient builds the API client from flags with env fallback.
func newAPIClient() (*client.Client, error) {
	serverURL := flagServerURL
	if serverURL == "" {
		serverURL = os.Getenv("REELFORGE_API_URL")
	}
	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required (set REELFORGE_API_URL or use --server)")
	}

	apiKey := flagAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("REELFORGE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required (set REELFORGE_API_KEY or use --api-key)")
	}

	return client.New(serverURL, apiKey, 15*time.Second), nil
}

// apiProber adapts the API client's compute health endpoint to the monitor's
// prober interface.
type apiProber struct {
	c *client.Client
}

func (p *apiProber) Probe(ctx context.Context) compute.Status {
	status, err := p.c.ComputeHealth(ctx)
	if err != nil {
		return compute.StatusError
	}
	return compute.Status(status)
}
