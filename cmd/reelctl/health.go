package main

import (
	"context"
	"fmt"

	"github.com/rudrakspatel/reelforge/internal/compute"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the compute service health as seen by the server",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	status, err := c.ComputeHealth(ctx)
	if err != nil {
		return fmt.Errorf("compute health: %w", err)
	}

	fmt.Printf("compute: %s\n", status)
	if compute.Status(status) == compute.StatusSleeping {
		fmt.Println("The service is cold. Starting a reel will wake it; expect a short wait.")
	}
	return nil
}
