package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/pkg/client"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a running reel job",
	RunE:  runCancel,
}

var cancelJobID string

func init() {
	cancelCmd.Flags().StringVar(&cancelJobID, "job", "", "Job ID (required)")

	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, _ []string) error {
	jobID, err := uuid.Parse(cancelJobID)
	if err != nil {
		return fmt.Errorf("--job must be a valid UUID")
	}

	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.CancelReel(ctx, jobID); err != nil {
		switch {
		case errors.Is(err, client.ErrJobFinished):
			return fmt.Errorf("job %s already finished and cannot be cancelled", jobID)
		case errors.Is(err, client.ErrNotFound):
			return fmt.Errorf("job %s not found", jobID)
		default:
			return err
		}
	}

	fmt.Printf("Reel job %s cancelled\n", jobID)
	return nil
}
