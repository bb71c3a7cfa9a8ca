package main

import (
	"github.com/spf13/cobra"

	"github.com/Blood-Moon-Interactive/StarWX/internal/events"
	"github.com/Blood-Moon-Interactive/StarWX/internal/jpl"
)

var (
	eventsStart string
	eventsEnd   string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List ranked astronomy events for a location",
	Long: `List close approaches, fireballs, impact-risk objects and mission targets
from the JPL feeds, classified for the observer and ranked by category.

Examples:
  starwxctl events --lat 40.7 --lon -74.0
  starwxctl events --lat 40.7 --lon -74.0 --start 2025-03-01 --end 2025-03-31
`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsStart, "start", "", "Range start (YYYY-MM-DD or RFC 3339)")
	eventsCmd.Flags().StringVar(&eventsEnd, "end", "", "Range end (YYYY-MM-DD or RFC 3339)")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	obs, err := observer()
	if err != nil {
		return err
	}
	rng, err := events.ParseRange(eventsStart, eventsEnd)
	if err != nil {
		return err
	}

	// No feed cache for one-shot runs.
	agg := events.NewAggregator(jpl.NewClient(cfg.JPLBaseURL, nil, logger), logger)
	result, err := agg.Events(cmd.Context(), obs, rng)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
