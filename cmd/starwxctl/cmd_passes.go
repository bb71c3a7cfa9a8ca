package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Blood-Moon-Interactive/StarWX/internal/config"
	"github.com/Blood-Moon-Interactive/StarWX/internal/iss"
	"github.com/Blood-Moon-Interactive/StarWX/internal/passes"
	"github.com/Blood-Moon-Interactive/StarWX/internal/propagation"
	"github.com/Blood-Moon-Interactive/StarWX/internal/tle"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

var (
	passesHours   int
	passesSource  string
	passesTLEFile string
	passesNORADID int
	passesStep    time.Duration
	passesStart   string
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "Predict visible ISS passes for a location",
	Long: `Predict visible passes of the tracked object over the next --hours.

The sgp4 source propagates locally from TLE data, read from --tle-file when
given and fetched from the configured CelesTrak URL otherwise. The iss source
queries wheretheiss.at.

Examples:
  # Next 24 hours over Denver, propagated from CelesTrak
  starwxctl passes --lat 39.7392 --lon -104.9903

  # Offline, from a saved TLE file
  starwxctl passes --lat 51.5 --lon -0.12 --tle-file /tmp/starwx/tle/tle_1770838763.txt
`,
	RunE: runPasses,
}

func init() {
	passesCmd.Flags().IntVar(&passesHours, "hours", 24, "Prediction horizon in hours")
	passesCmd.Flags().StringVar(&passesSource, "source", "", "Sample source: iss or sgp4 (default from config)")
	passesCmd.Flags().StringVar(&passesTLEFile, "tle-file", "", "Read TLE data from a file (implies --source sgp4)")
	passesCmd.Flags().IntVar(&passesNORADID, "norad", 0, "NORAD catalog ID to track (default from config)")
	passesCmd.Flags().DurationVar(&passesStep, "step", 0, "Sample spacing (default from config)")
	passesCmd.Flags().StringVar(&passesStart, "start", "", "Prediction start, RFC 3339 (default now)")
	rootCmd.AddCommand(passesCmd)
}

type passOutput struct {
	passes.Pass
	DurationMinutes int `json:"duration_minutes"`
}

func runPasses(cmd *cobra.Command, args []string) error {
	obs, err := observer()
	if err != nil {
		return err
	}
	if passesHours < 1 || passesHours > cfg.Passes.MaxHours {
		return fmt.Errorf("--hours must be between 1 and %d", cfg.Passes.MaxHours)
	}
	step := passesStep
	if step <= 0 {
		step = cfg.Passes.Step
	}
	start := time.Now().UTC().Truncate(step)
	if passesStart != "" {
		if start, err = time.Parse(time.RFC3339, passesStart); err != nil {
			return errors.New("--start: use RFC 3339, e.g. 2025-02-14T06:00:00Z")
		}
	}

	ctx := cmd.Context()
	source, err := buildSource(ctx)
	if err != nil {
		return err
	}

	results, err := passes.Predict(ctx, passes.Request{
		Observers: []visibility.Observer{obs},
		Source:    source,
		Start:     start,
		Step:      step,
		Horizon:   time.Duration(passesHours) * time.Hour,
	})
	if err != nil {
		return err
	}
	if results[0].Error != "" {
		return fmt.Errorf("predict: %s", results[0].Error)
	}

	out := make([]passOutput, len(results[0].Passes))
	for i, p := range results[0].Passes {
		out[i] = passOutput{Pass: p, DurationMinutes: p.DurationMinutes()}
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"observer":     obs,
		"start":        start,
		"hours":        passesHours,
		"step_seconds": int(step / time.Second),
		"passes":       out,
	})
}

func buildSource(ctx context.Context) (passes.SampleSource, error) {
	source := passesSource
	if source == "" {
		source = cfg.Source
	}
	if passesTLEFile != "" {
		source = config.SourceSGP4
	}
	noradID := passesNORADID
	if noradID == 0 {
		noradID = cfg.NORADID
	}

	switch source {
	case config.SourceISS:
		return iss.NewClient(cfg.ISSBaseURL, logger), nil
	case config.SourceSGP4:
		store, err := loadTLE(ctx)
		if err != nil {
			return nil, err
		}
		return propagation.NewPropagator(store, propagation.Config{
			Workers: cfg.Workers,
			NORADID: noradID,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want %s or %s)", source, config.SourceISS, config.SourceSGP4)
	}
}

// loadTLE fills a store from --tle-file or, failing that, from CelesTrak.
func loadTLE(ctx context.Context) (*tle.Store, error) {
	var (
		data   []byte
		origin string
		err    error
	)
	if passesTLEFile != "" {
		origin = passesTLEFile
		data, err = os.ReadFile(passesTLEFile)
	} else {
		fetcher := tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
		origin = fetcher.SourceURL()
		data, err = fetcher.Fetch(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("read TLE data: %w", err)
	}

	entries, err := tle.Parse(bytes.NewReader(data), logger)
	if err != nil {
		return nil, fmt.Errorf("parse TLE data: %w", err)
	}
	store := tle.NewStore()
	store.Set(tle.NewDataset(origin, time.Now().UTC(), entries))
	logger.Info("TLE data loaded", "source", origin, "entries", len(entries))
	return store, nil
}
