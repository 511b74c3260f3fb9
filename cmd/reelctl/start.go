package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/pkg/client"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a highlight reel job for a project",
	Long:  "Start a highlight reel job. The server refuses when the compute service is sleeping or the project already has a job running.",
	RunE:  runStart,
}

var (
	startProjectID string
	startUserID    string
	startWatch     bool
)

func init() {
	startCmd.Flags().StringVar(&startProjectID, "project", "", "Project ID (required)")
	startCmd.Flags().StringVar(&startUserID, "user", "", "Requesting user ID (required)")
	startCmd.Flags().BoolVar(&startWatch, "watch", false, "Keep polling until the job reaches a terminal status")

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, _ []string) error {
	projectID, err := uuid.Parse(startProjectID)
	if err != nil {
		return fmt.Errorf("--project must be a valid UUID")
	}
	userID, err := uuid.Parse(startUserID)
	if err != nil {
		return fmt.Errorf("--user must be a valid UUID")
	}

	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	job, err := c.StartReel(ctx, projectID, userID)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrServiceSleeping):
			return fmt.Errorf("the reel service is waking up; try again in a minute or two")
		case errors.Is(err, client.ErrActiveJobExists):
			return fmt.Errorf("this project already has a reel job in progress; watch or cancel it first")
		default:
			return err
		}
	}

	fmt.Printf("Reel job %s started for project %s\n", job.ID, job.ProjectID)

	if startWatch {
		return watchProject(ctx, c, projectID)
	}
	fmt.Printf("Run 'reelctl watch --project %s' to follow progress\n", projectID)
	return nil
}
