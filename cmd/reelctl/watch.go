package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/internal/monitor"
	"github.com/rudrakspatel/reelforge/pkg/client"
	"github.com/rudrakspatel/reelforge/pkg/models"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the latest reel job of a project until it finishes",
	RunE:  runWatch,
}

var watchProjectID string

func init() {
	watchCmd.Flags().StringVar(&watchProjectID, "project", "", "Project ID (required)")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	projectID, err := uuid.Parse(watchProjectID)
	if err != nil {
		return fmt.Errorf("--project must be a valid UUID")
	}

	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return watchProject(ctx, c, projectID)
}

// watchProject attaches a monitor to the project's latest job and prints
// progress until a terminal status or interrupt.
func watchProject(ctx context.Context, c *client.Client, projectID uuid.UUID) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := monitor.New(c, &apiProber{c: c}, monitor.Options{})
	defer m.Close()

	if err := m.Attach(ctx, projectID); err != nil {
		return fmt.Errorf("attach to project: %w", err)
	}

	var lastProgress = -1
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped watching; the job keeps running on the server.")
			return nil
		case snap, ok := <-m.Updates():
			if !ok {
				return nil
			}
			if snap.Job != nil && snap.Job.Progress != lastProgress {
				lastProgress = snap.Job.Progress
				fmt.Printf("  %s  %3d%%  moments=%d\n",
					snap.Job.Status, snap.Job.Progress, len(snap.Job.DetectedMoments))
			}
			if snap.State == monitor.StateTerminal && snap.Job != nil {
				printOutcome(snap.Job)
				return nil
			}
			if snap.State == monitor.StateIdle {
				fmt.Println("No reel job found for this project.")
				return nil
			}
		}
	}
}

func printOutcome(job *models.ReelJob) {
	switch {
	case job.Status == models.JobStatusCompleted:
		fmt.Printf("Reel completed with %d moments.\n", len(job.DetectedMoments))
	case job.Cancelled():
		fmt.Println("Reel job was cancelled.")
	default:
		msg := "unknown error"
		if job.ErrorMessage != nil {
			msg = *job.ErrorMessage
		}
		fmt.Printf("Reel job failed: %s\n", msg)
	}
}
