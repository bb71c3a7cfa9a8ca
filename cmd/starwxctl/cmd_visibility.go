package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Blood-Moon-Interactive/StarWX/internal/iss"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

var visibilityCmd = &cobra.Command{
	Use:   "visibility",
	Short: "Report whether the ISS is visible from a location right now",
	RunE:  runVisibility,
}

func init() {
	rootCmd.AddCommand(visibilityCmd)
}

func runVisibility(cmd *cobra.Command, args []string) error {
	obs, err := observer()
	if err != nil {
		return err
	}

	pos, err := iss.NewClient(cfg.ISSBaseURL, logger).Current(cmd.Context())
	if err != nil {
		return err
	}
	sample := pos.Sample()

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"observer":   obs,
		"position":   sample,
		"status":     pos.Status(time.Now()),
		"visibility": visibility.Classify(obs, visibility.OrbitingPlatform{Sample: sample}),
	})
}
