// Command starwxctl answers StarWX questions from the command line without
// running the server. Output is JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Blood-Moon-Interactive/StarWX/internal/config"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

var (
	logger *slog.Logger
	cfg    config.Config

	lat     float64
	lon     float64
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "starwxctl",
	Short: "StarWX command line client",
	Long: `starwxctl computes ISS passes, current ISS visibility and ranked
astronomy events for an observer location.

Configuration is read the same way as the server (STARWX_* environment
variables and STARWX_CONFIG_FILE).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().Float64Var(&lat, "lat", 0, "Observer latitude in degrees")
	rootCmd.PersistentFlags().Float64Var(&lon, "lon", 0, "Observer longitude in degrees")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	rootCmd.MarkPersistentFlagRequired("lat")
	rootCmd.MarkPersistentFlagRequired("lon")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called before every subcommand).
func loadConfig() error {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	bootLogger := slog.New(slog.NewJSONHandler(w, nil))

	var err error
	cfg, err = config.Load(bootLogger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return nil
}

// observer validates the --lat/--lon flags.
func observer() (visibility.Observer, error) {
	obs := visibility.NewObserver(lat, lon)
	if !obs.Location.Valid() {
		return visibility.Observer{}, fmt.Errorf("invalid location %.4f,%.4f: latitude must be within ±90 and longitude within ±180", lat, lon)
	}
	return obs, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
