package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rudrakspatel/reelforge/internal/readiness"
	"github.com/spf13/cobra"
)

var mediaWaitCmd = &cobra.Command{
	Use:   "media-wait",
	Short: "Wait until an uploaded asset's derived media is ready on the CDN",
	Long:  "Poll the CDN with backoff until a thumbnail or playback manifest for the asset becomes available, or the attempt budget runs out.",
	RunE:  runMediaWait,
}

var (
	mediaAssetID string
	mediaKind    string
	mediaCDNURL  string
)

func init() {
	mediaWaitCmd.Flags().StringVar(&mediaAssetID, "asset", "", "Asset ID (required)")
	mediaWaitCmd.Flags().StringVar(&mediaKind, "kind", "thumbnail", "Asset kind: thumbnail or playback")
	mediaWaitCmd.Flags().StringVar(&mediaCDNURL, "cdn", "", "CDN base URL (or MEDIA_CDN_BASE_URL)")

	rootCmd.AddCommand(mediaWaitCmd)
}

func runMediaWait(cmd *cobra.Command, _ []string) error {
	if mediaAssetID == "" {
		return fmt.Errorf("--asset is required")
	}

	cdnURL := mediaCDNURL
	if cdnURL == "" {
		cdnURL = os.Getenv("MEDIA_CDN_BASE_URL")
	}
	if cdnURL == "" {
		return fmt.Errorf("CDN base URL is required (set MEDIA_CDN_BASE_URL or use --cdn)")
	}

	var probe *readiness.Probe
	switch mediaKind {
	case "thumbnail":
		probe = readiness.NewThumbnailProbe(cdnURL, readiness.Options{})
	case "playback":
		probe = readiness.NewPlaybackProbe(cdnURL, readiness.Options{})
	default:
		return fmt.Errorf("--kind must be thumbnail or playback")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Waiting for %s of asset %s...\n", mediaKind, mediaAssetID)
	res, err := probe.WaitUntilReady(ctx, mediaAssetID)
	if err != nil {
		switch {
		case errors.Is(err, readiness.ErrAttemptsExhausted):
			return fmt.Errorf("gave up after %d attempts (%s); the asset may still be processing", res.Attempts, res.Elapsed.Round(100*time.Millisecond))
		case errors.Is(err, readiness.ErrResourceFailed):
			return fmt.Errorf("asset check failed: %w", err)
		default:
			return err
		}
	}

	fmt.Printf("Ready after %d attempts in %s\n", res.Attempts, res.Elapsed.Round(100*time.Millisecond))
	return nil
}
